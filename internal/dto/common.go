package dto

import "github.com/shopspring/decimal"

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives the page count from the totals.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: totalPages}
}

// Points renders a decimal score with two fractional digits as a JSON number.
func Points(value decimal.Decimal) float64 {
	return value.Round(2).InexactFloat64()
}
