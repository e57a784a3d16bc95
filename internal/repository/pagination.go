package repository

import "antbox-backend/internal/domain"

// DefaultPageSize applies when the caller does not specify one.
const DefaultPageSize = 20

// MaxPageSize caps a single page; large listings must paginate.
const MaxPageSize = 1000

// Pagination selects one page of a filter result. PageToken is 1-based.
type Pagination struct {
	PageSize  int `json:"pageSize"`
	PageToken int `json:"pageToken"`
}

// Normalized applies defaults and caps.
func (p Pagination) Normalized() Pagination {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.PageToken <= 0 {
		p.PageToken = 1
	}
	return p
}

// All is a pagination large enough for internal full scans (cascades,
// sub-queries) that must see every match.
func All() Pagination {
	return Pagination{PageSize: MaxPageSize, PageToken: 1}
}

// NodePage is one page of a filter evaluation.
type NodePage struct {
	Nodes     []*domain.Node `json:"nodes"`
	PageSize  int            `json:"pageSize"`
	PageToken int            `json:"pageToken"`
	PageCount int            `json:"pageCount"`
}
