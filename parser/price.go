package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// DefaultCurrency is stripped from prices when no other symbol is configured.
const DefaultCurrency = "₹"

// CleanPrice removes quotes, the currency symbol and thousands separators.
func CleanPrice(price, currency string) string {
	price = strings.ReplaceAll(price, "'", "")
	if currency != "" {
		price = strings.ReplaceAll(price, currency, "")
	}
	price = strings.ReplaceAll(price, ",", "")
	return strings.TrimSpace(price)
}

// NormalizePrice coerces a price string to a number. The unavailable
// sentinel survives as is; anything else that does not parse becomes NaN.
func NormalizePrice(price, currency string) models.Price {
	cleaned := CleanPrice(price, currency)
	if cleaned == models.UnavailablePrice {
		return models.Price{Kind: models.PriceUnavailable}
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return models.Price{Kind: models.PriceNaN}
	}
	return models.AmountPrice(v)
}

// NormalizeRecord derives the listing price for one record. A record without
// availability text is always priced as unavailable.
func NormalizeRecord(r *models.ProductRecord, currency string) *models.Listing {
	l := &models.Listing{Record: *r}
	if r.Availability.Empty() {
		l.Price = models.Price{Kind: models.PriceUnavailable}
		return l
	}
	if !r.Price.Valid {
		l.Price = models.Price{Kind: models.PriceNaN}
		return l
	}
	l.Price = NormalizePrice(r.Price.Value, currency)
	return l
}

// NormalizeRecords returns listings for records in the same order. The input
// records are not modified.
func NormalizeRecords(records []*models.ProductRecord, currency string) []*models.Listing {
	out := make([]*models.Listing, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		out = append(out, NormalizeRecord(r, currency))
	}
	return out
}
