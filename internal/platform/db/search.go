package db

import (
	"fmt"
	"sort"
	"strings"
)

// FilterType selects how a query parameter becomes a WHERE clause.
type FilterType int

const (
	FilterExact    FilterType = iota // column = $n
	FilterText                       // any of the columns ILIKE %value%
	FilterDateFrom                   // column >= $n
	FilterDateTo                     // column < $n + 1 day
	FilterBool                       // column = $n::boolean
)

// Filter maps a query parameter to its columns.
type Filter struct {
	Type    FilterType
	Columns []string
}

// SearchQuery builds a COUNT and a paged SELECT sharing one WHERE clause.
type SearchQuery struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

func NewSearchQuery(table, cols string) *SearchQuery {
	return &SearchQuery{
		table: table,
		cols:  cols,
		idx:   1,
	}
}

// Idx returns the next available parameter index.
func (q *SearchQuery) Idx() int { return q.idx }

// Add appends a raw WHERE fragment using placeholders starting at Idx().
func (q *SearchQuery) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// ApplyFilter adds the clause for a single parameter value.
func (q *SearchQuery) ApplyFilter(f Filter, value string) {
	if value == "" || len(f.Columns) == 0 {
		return
	}
	switch f.Type {
	case FilterExact:
		q.Add(fmt.Sprintf("%s = $%d", f.Columns[0], q.idx), value)
	case FilterBool:
		q.Add(fmt.Sprintf("%s = $%d::boolean", f.Columns[0], q.idx), value)
	case FilterText:
		parts := make([]string, len(f.Columns))
		for i, c := range f.Columns {
			parts[i] = fmt.Sprintf("%s ILIKE $%d", c, q.idx)
		}
		q.Add("("+strings.Join(parts, " OR ")+")", "%"+value+"%")
	case FilterDateFrom:
		q.Add(fmt.Sprintf("%s >= $%d::date", f.Columns[0], q.idx), value)
	case FilterDateTo:
		q.Add(fmt.Sprintf("%s < ($%d::date + 1)", f.Columns[0], q.idx), value)
	}
}

// ApplyParams applies known parameters in name order so placeholder numbering
// is stable.
func (q *SearchQuery) ApplyParams(params map[string]string, filters map[string]Filter) {
	names := make([]string, 0, len(params))
	for name := range params {
		if _, ok := filters[name]; ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		q.ApplyFilter(filters[name], params[name])
	}
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (q *SearchQuery) OrderBy(orderBy string) {
	q.orderBy = orderBy
}

// ApplySort resolves a "-name" style key against whitelisted columns.
func (q *SearchQuery) ApplySort(sortParam, defaultOrder string, columns map[string]string) {
	q.orderBy = defaultOrder
	key := strings.TrimSpace(sortParam)
	dir := "ASC"
	if strings.HasPrefix(key, "-") {
		key, dir = key[1:], "DESC"
	}
	if col, ok := columns[key]; ok {
		q.orderBy = col + " " + dir
	}
}

func (q *SearchQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.table, q.where)
}

func (q *SearchQuery) CountArgs() []interface{} {
	return q.args
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (q *SearchQuery) DataSQL(limit, offset int) string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.table, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the search args followed by limit and offset.
func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}
