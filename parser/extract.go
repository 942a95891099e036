// Package parser turns product detail pages into records and cleans the
// extracted values.
package parser

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-listings/models"
)

// TextContent asks Extract for the trimmed text of the matched element.
const TextContent = ""

const unavailablePhrase = "Currently Unavailable"

var (
	availabilitySelector = "#availability span"
	titleSelector        = "#productTitle"
	ratingSelector       = "span.a-icon-alt"
	reviewsSelector      = "#acrCustomerReviewText"
	bestSellerSelector   = "#SalesRank"
	sponsoredSelector    = ".a-badge-label"

	priceSelectors = []string{
		".a-price .a-offscreen",
		".a-price-whole",
		".a-price-fraction",
	}
	// Offers from other sellers shown when the buy box is empty.
	alternatePriceSelectors = []string{
		".a-price.a-spacing-top-small .a-offscreen",
		".a-price-range .a-price .a-offscreen",
	}
)

// Extract returns the trimmed text (attr == TextContent) or the named
// attribute of the first element matching selector. Anything that goes wrong,
// including a selector that does not compile, yields models.Unknown.
func Extract(doc *goquery.Document, selector, attr string) (out models.Text) {
	defer func() {
		if r := recover(); r != nil {
			out = models.Unknown
		}
	}()

	if doc == nil {
		return models.Unknown
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return models.Unknown
	}
	if attr == TextContent {
		return models.Known(strings.TrimSpace(sel.Text()))
	}
	value, ok := sel.Attr(attr)
	if !ok {
		return models.Unknown
	}
	return models.Known(value)
}

// FirstOf returns the first selector result that is not absent.
func FirstOf(doc *goquery.Document, selectors []string) models.Text {
	for _, selector := range selectors {
		if v := Extract(doc, selector, TextContent); v.Valid {
			return v
		}
	}
	return models.Unknown
}

// Exists reports whether any element matches selector.
func Exists(doc *goquery.Document, selector string) bool {
	if doc == nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}

// IsAvailable is true unless the availability text carries the
// "Currently Unavailable" notice. Blank or missing text counts as available.
func IsAvailable(availability models.Text) bool {
	return !strings.Contains(availability.Value, unavailablePhrase)
}

// ExtractPrice picks the buy-box price for available listings and the
// alternate seller price otherwise.
func ExtractPrice(doc *goquery.Document, available bool) models.Text {
	if available {
		return FirstOf(doc, priceSelectors)
	}
	if v := FirstOf(doc, alternatePriceSelectors); v.Valid {
		return v
	}
	return models.Known(models.UnavailablePrice)
}

// ExtractRating keeps the numeric score from text like "4.3 out of 5 stars".
func ExtractRating(doc *goquery.Document) models.Text {
	return firstToken(Extract(doc, ratingSelector, TextContent))
}

// ExtractReviews keeps the count from text like "1,024 ratings".
func ExtractReviews(doc *goquery.Document) models.Text {
	v := firstToken(Extract(doc, reviewsSelector, TextContent))
	if !v.Valid {
		return v
	}
	return models.Known(strings.ReplaceAll(v.Value, ",", ""))
}

func firstToken(v models.Text) models.Text {
	if !v.Valid {
		return v
	}
	fields := strings.Fields(v.Value)
	if len(fields) == 0 {
		return models.Unknown
	}
	return models.Known(fields[0])
}

// ParseProduct builds a record for asin from its detail page. SerialNo is
// left for the caller.
func ParseProduct(doc *goquery.Document, asin, link string, capturedAt time.Time) *models.ProductRecord {
	availability := Extract(doc, availabilitySelector, TextContent)
	available := IsAvailable(availability)

	return &models.ProductRecord{
		ASIN:            asin,
		Link:            link,
		Title:           Extract(doc, titleSelector, TextContent),
		Price:           ExtractPrice(doc, available),
		Availability:    availability,
		Rating:          ExtractRating(doc),
		Reviews:         ExtractReviews(doc),
		BestSeller:      models.Flag(Exists(doc, bestSellerSelector)),
		InStock:         models.Flag(available),
		Sponsored:       models.Flag(Exists(doc, sponsoredSelector)),
		BoughtLastMonth: models.Unknown,
		CapturedAt:      capturedAt,
	}
}
