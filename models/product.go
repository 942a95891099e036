// Package models defines data structures for the scraper.
package models

import (
	"math"
	"strconv"
	"time"
)

const (
	// UnknownText is the display form of an absent value.
	UnknownText = "unknown"
	// UnavailablePrice is the display form of a price for an unavailable listing.
	UnavailablePrice = "Currently Unavailable"
	// NotANumber is the display form of a price that could not be parsed.
	NotANumber = "NaN"
	// TimestampLayout is the capture timestamp format (local wall clock, seconds).
	TimestampLayout = "2006-01-02 15:04:05"
)

// Text is an extracted string that may be absent. The zero value is absent.
type Text struct {
	Value string
	Valid bool
}

// Known wraps an extracted value.
func Known(s string) Text {
	return Text{Value: s, Valid: true}
}

// Unknown is the absent value.
var Unknown = Text{}

// String returns the value, or UnknownText when absent.
func (t Text) String() string {
	if !t.Valid {
		return UnknownText
	}
	return t.Value
}

// Empty reports whether the value is absent or blank.
func (t Text) Empty() bool {
	return !t.Valid || t.Value == ""
}

// Flag is a boolean rendered as Yes/No.
type Flag bool

func (f Flag) String() string {
	if f {
		return "Yes"
	}
	return "No"
}

// ProductRecord is one listing as extracted from a detail page.
type ProductRecord struct {
	SerialNo        int
	ASIN            string
	Link            string
	Title           Text
	Price           Text
	Availability    Text
	Rating          Text
	Reviews         Text
	BestSeller      Flag
	InStock         Flag
	Sponsored       Flag
	BoughtLastMonth Text
	CapturedAt      time.Time
}

// PriceKind tells how a normalised price should be read.
type PriceKind int

const (
	PriceNaN PriceKind = iota
	PriceAmount
	PriceUnavailable
)

// Price is the normalised form of a listing price.
type Price struct {
	Kind   PriceKind
	Amount float64
}

// AmountPrice returns a numeric price.
func AmountPrice(v float64) Price {
	return Price{Kind: PriceAmount, Amount: v}
}

// Float returns the numeric value, NaN unless Kind is PriceAmount.
func (p Price) Float() float64 {
	if p.Kind != PriceAmount {
		return math.NaN()
	}
	return p.Amount
}

func (p Price) String() string {
	switch p.Kind {
	case PriceAmount:
		return strconv.FormatFloat(p.Amount, 'f', -1, 64)
	case PriceUnavailable:
		return UnavailablePrice
	default:
		return NotANumber
	}
}

// Listing is a record paired with its normalised price. The record itself is
// a copy and never changes after the runner emits it.
type Listing struct {
	Record ProductRecord
	Price  Price
}

// Header is the column order used by every tabular output.
var Header = []string{
	"S.No",
	"ASIN",
	"Link",
	"Title",
	"Price",
	"Availability",
	"Rating",
	"Reviews",
	"BestSeller",
	"In Stock",
	"Sponsored",
	"Bought Last Month",
	"Timestamp",
}

// Row renders the listing in Header order.
func (l *Listing) Row() []string {
	r := &l.Record
	return []string{
		strconv.Itoa(r.SerialNo),
		r.ASIN,
		r.Link,
		r.Title.String(),
		l.Price.String(),
		r.Availability.String(),
		r.Rating.String(),
		r.Reviews.String(),
		r.BestSeller.String(),
		r.InStock.String(),
		r.Sponsored.String(),
		r.BoughtLastMonth.String(),
		r.CapturedAt.Format(TimestampLayout),
	}
}

// ScrapeResult holds the overall result of a batch run.
type ScrapeResult struct {
	Records      []*ProductRecord
	StartTime    time.Time
	EndTime      time.Time
	Requested    int
	ErrorCount   int
	FailedASINs  []string
	ErrorsByType map[string]int
}
