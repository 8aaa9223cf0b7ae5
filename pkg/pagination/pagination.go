// Package pagination implements the listing envelope shared by every
// collection endpoint: page_number = ceil((offset+1)/limit).
package pagination

import (
	"github.com/example/storefront/pkg/apperr"
)

const (
	DefaultOffset = 0
	DefaultLimit  = 10
)

type Params struct {
	Offset  int
	Limit   int
	Keyword string
}

func (p Params) Validate() error {
	if p.Offset < 0 {
		return apperr.Validation("offset must be zero or greater")
	}
	if p.Limit <= 0 {
		return apperr.Validation("limit must be greater than zero")
	}
	return nil
}

type Page[T any] struct {
	PageNumber       int   `json:"page_number"`
	PageSize         int   `json:"page_size"`
	TotalRecordCount int64 `json:"total_record_count"`
	Items            []T   `json:"items"`
}

// New assumes params already validated: offset >= 0, limit > 0.
// For those inputs offset/limit + 1 equals ceil((offset+1)/limit).
func New[T any](p Params, total int64, items []T) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		PageNumber:       p.Offset/p.Limit + 1,
		PageSize:         p.Limit,
		TotalRecordCount: total,
		Items:            items,
	}
}
