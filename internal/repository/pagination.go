package repository

import (
	"fmt"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a resolved, injection-safe pagination window.
type Page struct {
	Page     int
	PageSize int
	Limit    int
	Offset   int
	OrderBy  string
}

// Paginate normalises paging input. Sort fields outside allowed fall back to
// defaultSort and the order defaults to DESC.
func Paginate(page, pageSize int, sortBy, sortOrder string, allowed map[string]bool, defaultSort string) Page {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	if sortBy == "" || !allowed[sortBy] {
		sortBy = defaultSort
	}
	order := strings.ToUpper(sortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return Page{
		Page:     page,
		PageSize: pageSize,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
		OrderBy:  fmt.Sprintf("%s %s", sortBy, order),
	}
}

// Clause renders the ORDER BY / LIMIT / OFFSET tail of a list query.
func (p Page) Clause() string {
	return fmt.Sprintf("ORDER BY %s LIMIT %d OFFSET %d", p.OrderBy, p.Limit, p.Offset)
}
