package pagination

import (
	"testing"

	"github.com/harborchat/harbor-backend/internal/apperr"
)

// fetchIDs serves pages out of an in-memory id slice, honoring the Query
// contract the same way the SQL layer does.
func fetchIDs(ids []uint) Fetch[uint] {
	return func(q Query) ([]uint, error) {
		sorted := make([]uint, len(ids))
		copy(sorted, ids)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				less := sorted[j] < sorted[i]
				if q.Order == OrderDesc {
					less = sorted[j] > sorted[i]
				}
				if less {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}

		var out []uint
		for _, id := range sorted {
			if q.CursorID != 0 {
				if q.Order == OrderAsc && id <= q.CursorID {
					continue
				}
				if q.Order == OrderDesc && id >= q.CursorID {
					continue
				}
			}
			out = append(out, id)
			if len(out) >= q.Limit {
				break
			}
		}
		return out, nil
	}
}

func idOf(id uint) uint { return id }

func seq(n int) []uint {
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	return ids
}

func TestPaginateFirstPage(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		opts        Options
		wantLen     int
		wantFirst   uint
		wantLast    uint
		wantNext    bool
		wantPrev    bool
	}{
		{"default limit", 25, Options{}, 10, 1, 10, true, false},
		{"limit clamped to max", 120, Options{Limit: 90}, 50, 1, 50, true, false},
		{"descending default newest first", 25, Options{Limit: 10, Order: OrderDesc}, 10, 25, 16, true, false},
		{"exactly one page", 10, Options{Limit: 10}, 10, 1, 10, false, false},
		{"short final page", 7, Options{Limit: 10}, 7, 1, 7, false, false},
		{"empty source", 0, Options{Limit: 10}, 0, 0, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Paginate(fetchIDs(seq(tt.total)), tt.opts, idOf)
			if err != nil {
				t.Fatalf("Paginate error = %v", err)
			}
			if len(page.Data) != tt.wantLen {
				t.Fatalf("len(data) = %d, want %d", len(page.Data), tt.wantLen)
			}
			if tt.wantLen > 0 {
				if page.Data[0] != tt.wantFirst || page.Data[len(page.Data)-1] != tt.wantLast {
					t.Errorf("page bounds = [%d..%d], want [%d..%d]",
						page.Data[0], page.Data[len(page.Data)-1], tt.wantFirst, tt.wantLast)
				}
			}
			if page.Meta.HasNextPage != tt.wantNext {
				t.Errorf("hasNextPage = %v, want %v", page.Meta.HasNextPage, tt.wantNext)
			}
			if page.Meta.HasPreviousPage != tt.wantPrev {
				t.Errorf("hasPreviousPage = %v, want %v", page.Meta.HasPreviousPage, tt.wantPrev)
			}
		})
	}
}

func TestPaginateAfterCursorWalk(t *testing.T) {
	fetch := fetchIDs(seq(25))

	var seen []uint
	opts := Options{Limit: 10}
	for {
		page, err := Paginate(fetch, opts, idOf)
		if err != nil {
			t.Fatalf("Paginate error = %v", err)
		}
		seen = append(seen, page.Data...)
		if !page.Meta.HasNextPage {
			break
		}
		if page.Meta.NextCursor == "" {
			t.Fatal("hasNextPage without nextCursor")
		}
		opts.AfterCursor = page.Meta.NextCursor
	}

	if len(seen) != 25 {
		t.Fatalf("walked %d items, want 25", len(seen))
	}
	for i, id := range seen {
		if id != uint(i+1) {
			t.Fatalf("item %d = %d: pages skipped or duplicated an item", i, id)
		}
	}
}

func TestPaginateBeforeCursor(t *testing.T) {
	// Page 3 of a descending feed starts at id 5; going back should yield
	// page 2 in the same descending order.
	page, err := Paginate(fetchIDs(seq(25)), Options{
		Limit:        5,
		Order:        OrderDesc,
		BeforeCursor: EncodeCursor(15),
	}, idOf)
	if err != nil {
		t.Fatalf("Paginate error = %v", err)
	}

	want := []uint{20, 19, 18, 17, 16}
	if len(page.Data) != len(want) {
		t.Fatalf("len(data) = %d, want %d", len(page.Data), len(want))
	}
	for i, id := range page.Data {
		if id != want[i] {
			t.Fatalf("data = %v, want %v", page.Data, want)
		}
	}
	if !page.Meta.HasNextPage {
		t.Error("backwards page must report a next page: the cursor row is ahead of it")
	}
	if !page.Meta.HasPreviousPage {
		t.Error("hasPreviousPage = false, want true (more rows behind)")
	}
}

func TestPaginateRoundTrip(t *testing.T) {
	// Forward one page, then back via previousCursor: the reconstructed page
	// must lead with the same item.
	fetch := fetchIDs(seq(30))

	first, err := Paginate(fetch, Options{Limit: 10, Order: OrderDesc}, idOf)
	if err != nil {
		t.Fatalf("first page error = %v", err)
	}
	second, err := Paginate(fetch, Options{Limit: 10, Order: OrderDesc, AfterCursor: first.Meta.NextCursor}, idOf)
	if err != nil {
		t.Fatalf("second page error = %v", err)
	}
	back, err := Paginate(fetch, Options{Limit: 10, Order: OrderDesc, BeforeCursor: second.Meta.PreviousCursor}, idOf)
	if err != nil {
		t.Fatalf("backward page error = %v", err)
	}

	if len(back.Data) != len(first.Data) || back.Data[0] != first.Data[0] {
		t.Fatalf("round trip leading item = %d, want %d", back.Data[0], first.Data[0])
	}
}

func TestPaginateStableUnderInserts(t *testing.T) {
	// A cursor issued before concurrent inserts still resumes at the same
	// boundary: new higher ids never shift already-issued cursors.
	ids := seq(10)
	fetch := func(q Query) ([]uint, error) {
		return fetchIDs(ids)(q)
	}

	first, err := Paginate(fetch, Options{Limit: 5}, idOf)
	if err != nil {
		t.Fatalf("first page error = %v", err)
	}

	ids = append(ids, 11, 12, 13)

	second, err := Paginate(fetch, Options{Limit: 5, AfterCursor: first.Meta.NextCursor}, idOf)
	if err != nil {
		t.Fatalf("second page error = %v", err)
	}
	if second.Data[0] != 6 {
		t.Fatalf("second page starts at %d, want 6", second.Data[0])
	}
}

func TestPaginateInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"garbage after cursor", Options{AfterCursor: "not-a-number"}},
		{"garbage before cursor", Options{BeforeCursor: "xyz"}},
		{"both cursors", Options{AfterCursor: "5", BeforeCursor: "9"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Paginate(fetchIDs(seq(10)), tt.opts, idOf)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Errorf("error = %v, want validation error", err)
			}
		})
	}
}
