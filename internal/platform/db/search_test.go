package db

import (
	"testing"
)

var testFilters = map[string]Filter{
	"q":        {Type: FilterText, Columns: []string{"name", "sku"}},
	"category": {Type: FilterExact, Columns: []string{"category"}},
	"from":     {Type: FilterDateFrom, Columns: []string{"created_at"}},
	"to":       {Type: FilterDateTo, Columns: []string{"created_at"}},
}

func TestSearchQuery_ApplyParams(t *testing.T) {
	q := NewSearchQuery("medicines", "id, name")
	q.ApplyParams(map[string]string{
		"q":        "napa",
		"category": "tablet",
		"unknown":  "ignored",
	}, testFilters)
	q.OrderBy("name ASC")

	wantCount := "SELECT COUNT(*) FROM medicines WHERE 1=1 AND category = $1 AND (name ILIKE $2 OR sku ILIKE $2)"
	if got := q.CountSQL(); got != wantCount {
		t.Errorf("CountSQL()\n got: %s\nwant: %s", got, wantCount)
	}

	wantData := "SELECT id, name FROM medicines WHERE 1=1 AND category = $1 AND (name ILIKE $2 OR sku ILIKE $2) ORDER BY name ASC LIMIT $3 OFFSET $4"
	if got := q.DataSQL(20, 0); got != wantData {
		t.Errorf("DataSQL()\n got: %s\nwant: %s", got, wantData)
	}

	args := q.DataArgs(20, 40)
	if len(args) != 4 || args[0] != "tablet" || args[1] != "%napa%" || args[2] != 20 || args[3] != 40 {
		t.Errorf("unexpected args: %v", args)
	}
}

func TestSearchQuery_DateRange(t *testing.T) {
	q := NewSearchQuery("sales", "id")
	q.ApplyParams(map[string]string{"from": "2024-01-01", "to": "2024-01-31"}, testFilters)

	want := "SELECT COUNT(*) FROM sales WHERE 1=1 AND created_at >= $1::date AND created_at < ($2::date + 1)"
	if got := q.CountSQL(); got != want {
		t.Errorf("CountSQL()\n got: %s\nwant: %s", got, want)
	}
}

func TestSearchQuery_EmptyValueSkipped(t *testing.T) {
	q := NewSearchQuery("patients", "id")
	q.ApplyParams(map[string]string{"q": ""}, testFilters)
	if q.Idx() != 1 {
		t.Errorf("expected no placeholders consumed, idx=%d", q.Idx())
	}
}

func TestSearchQuery_ApplySort(t *testing.T) {
	cols := map[string]string{"name": "name", "stock": "stock_qty"}
	tests := []struct {
		sort string
		want string
	}{
		{"", "created_at DESC"},
		{"name", "name ASC"},
		{"-stock", "stock_qty DESC"},
		{"id; DROP TABLE medicines", "created_at DESC"},
	}
	for _, tt := range tests {
		q := NewSearchQuery("medicines", "id")
		q.ApplySort(tt.sort, "created_at DESC", cols)
		if q.orderBy != tt.want {
			t.Errorf("ApplySort(%q) = %q, want %q", tt.sort, q.orderBy, tt.want)
		}
	}
}
