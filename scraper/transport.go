package scraper

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// brotliTransport decodes br bodies below colly, so its charset conversion
// and gzip handling only ever see plain bytes.
type brotliTransport struct {
	base http.RoundTripper
}

func (t *brotliTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}
	if !strings.EqualFold(strings.TrimSpace(resp.Header.Get("Content-Encoding")), "br") {
		return resp, nil
	}

	resp.Body = &brotliBody{reader: brotli.NewReader(resp.Body), closer: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type brotliBody struct {
	reader io.Reader
	closer io.Closer
}

func (b *brotliBody) Read(p []byte) (int, error) {
	n, err := b.reader.Read(p)
	if err != nil && err != io.EOF {
		err = ErrParse{Err: fmt.Errorf("decode brotli body: %w", err)}
	}
	return n, err
}

func (b *brotliBody) Close() error {
	return b.closer.Close()
}

// setTransport installs rt beneath the brotli decoder.
func (s *Scraper) setTransport(rt http.RoundTripper) {
	s.collector.WithTransport(&brotliTransport{base: rt})
}
