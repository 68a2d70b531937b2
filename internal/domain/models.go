package domain

import "github.com/shopspring/decimal"

func init() {
	// Prices go over the wire as JSON numbers, e.g. 9.99
	decimal.MarshalJSONWithoutQuotes = true
}

// Book represents a single catalog entry
type Book struct {
	ID     int64           `json:"id"`     // Unique identifier, assigned by the store when zero
	Title  string          `json:"title"`  // Book title
	Author string          `json:"author"` // Book author
	Price  decimal.Decimal `json:"price"`  // Currency amount, kept exact
}
