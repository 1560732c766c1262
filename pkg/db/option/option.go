// Package option provides composable gorm query options.
package option

import (
	"fmt"
	"strings"
	"time"

	"github.com/usagegate/usagegate/pkg/db/pagination"
	"gorm.io/gorm"
)

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB { return f(stmt) }

// ApplyOperator adds a comparison condition.
func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return stmt
		}
		return stmt.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
	})
}

// ApplyPagination applies cursor pagination: one extra row is fetched so the
// caller can detect another page.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		size := p.PageSize
		if size <= 0 {
			size = 10
		}

		if token := strings.TrimSpace(p.PageToken); token != "" {
			cursor, err := pagination.DecodeCursor(token)
			if err == nil && cursor.CreatedAt != "" {
				// Compared as time.Time so the dialect's storage
				// format does not leak into the cursor.
				if ts, perr := time.Parse(time.RFC3339Nano, cursor.CreatedAt); perr == nil {
					stmt = stmt.Where("created_at < ?", ts)
				}
			}
		}

		return stmt.Limit(size + 1)
	})
}

// WithSortBy applies an ORDER BY clause.
func WithSortBy(clause string) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if clause == "" {
			return stmt
		}
		return stmt.Order(clause)
	})
}

// WithQuerySortBy validates a caller-supplied sort column against an
// allow-list and returns the ORDER BY clause.
func WithQuerySortBy(sortBy, orderBy string, allowed map[string]bool) string {
	column := strings.TrimSpace(sortBy)
	if column == "" || !allowed[column] {
		column = "created_at"
	}

	direction := strings.ToLower(strings.TrimSpace(orderBy))
	if direction != "asc" && direction != "desc" {
		direction = "desc"
	}

	return column + " " + direction
}
