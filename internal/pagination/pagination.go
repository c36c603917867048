// Package pagination implements keyset (cursor) pagination over collections
// ordered by a monotonically unique tie-break column. Cursors always name a
// stable column value, never an offset, so concurrent inserts can neither
// skip nor duplicate items across pages.
package pagination

import (
	"strconv"

	"github.com/harborchat/harbor-backend/internal/apperr"
)

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Options are the caller-supplied pagination parameters. At most one of
// AfterCursor/BeforeCursor may be set.
type Options struct {
	Limit        int
	AfterCursor  string
	BeforeCursor string
	Order        Order
}

// Query is what the engine asks a data source for: up to Limit rows sorted by
// the tie-break column in Order direction, strictly beyond CursorID (in that
// same direction) when CursorID is non-zero.
type Query struct {
	Limit    int
	Order    Order
	CursorID uint
}

// Meta describes the returned page.
type Meta struct {
	Limit           int    `json:"limit"`
	NextCursor      string `json:"nextCursor,omitempty"`
	PreviousCursor  string `json:"previousCursor,omitempty"`
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
}

type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

// Fetch loads rows for a query. Implementations must honor Query exactly:
// sort direction, strict cursor bound, row limit.
type Fetch[T any] func(q Query) ([]T, error)

// EncodeCursor renders the tie-break value as an opaque token.
func EncodeCursor(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func decodeCursor(token string) (uint, error) {
	id, err := strconv.ParseUint(token, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid pagination cursor")
	}
	return uint(id), nil
}

func reverse(order Order) Order {
	if order == OrderDesc {
		return OrderAsc
	}
	return OrderDesc
}

// Paginate runs the keyset algorithm: request limit+1 rows in the effective
// direction, use the extra row only as a more-pages probe, and reverse
// before-cursor results back to the requested order. cursorOf extracts the
// tie-break value from a row.
func Paginate[T any](fetch Fetch[T], opts Options, cursorOf func(T) uint) (Page[T], error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	order := opts.Order
	if order == "" {
		order = OrderAsc
	}

	if opts.AfterCursor != "" && opts.BeforeCursor != "" {
		return Page[T]{}, apperr.Validation("Cannot combine afterCursor and beforeCursor")
	}

	fetchOrder := order
	var cursorID uint
	var err error
	before := opts.BeforeCursor != ""

	switch {
	case opts.AfterCursor != "":
		if cursorID, err = decodeCursor(opts.AfterCursor); err != nil {
			return Page[T]{}, err
		}
	case before:
		if cursorID, err = decodeCursor(opts.BeforeCursor); err != nil {
			return Page[T]{}, err
		}
		fetchOrder = reverse(order)
	}

	rows, err := fetch(Query{Limit: limit + 1, Order: fetchOrder, CursorID: cursorID})
	if err != nil {
		return Page[T]{}, err
	}

	// The probe row signals more pages beyond the fetch direction; it is
	// never returned to the caller.
	more := len(rows) > limit
	if more {
		rows = rows[:limit]
	}

	meta := Meta{Limit: limit}
	if before {
		// Restore the requested order.
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		// Paging backwards: the probe looks further back, and the row the
		// cursor named is by definition ahead of this page.
		meta.HasPreviousPage = more
		meta.HasNextPage = true
	} else {
		meta.HasNextPage = more
		// Deliberately weak: "a cursor was supplied", not an existence
		// check. Clients treat it as a hint only.
		meta.HasPreviousPage = opts.AfterCursor != ""
	}

	if len(rows) > 0 {
		if meta.HasNextPage {
			meta.NextCursor = EncodeCursor(cursorOf(rows[len(rows)-1]))
		}
		if meta.HasPreviousPage || opts.AfterCursor != "" || opts.BeforeCursor != "" {
			meta.PreviousCursor = EncodeCursor(cursorOf(rows[0]))
		}
	}

	if rows == nil {
		rows = []T{}
	}
	return Page[T]{Data: rows, Meta: meta}, nil
}
