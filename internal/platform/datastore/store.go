// Package datastore is the client side of the upstream record store. The
// workflow only relies on equality filters, ordering, a row limit, inserts and
// partial updates by filter, so any backend offering those can serve it.
package datastore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Tables and their primary key columns.
const (
	TableDonor         = "donor_form"
	TableScreening     = "screening_form"
	TableMedical       = "medical_history"
	TablePhysicalExam  = "physical_examination"
	TableEligibility   = "eligibility"
	TableUsers         = "users"
	DefaultOrderColumn = "created_at"
)

// PrimaryKeys maps each known table to its key column.
var PrimaryKeys = map[string]string{
	TableDonor:        "donor_id",
	TableScreening:    "screening_id",
	TableMedical:      "medical_history_id",
	TablePhysicalExam: "physical_exam_id",
	TableEligibility:  "eligibility_id",
	TableUsers:        "user_id",
}

var (
	// ErrUpstream marks any failure talking to the backing store.
	ErrUpstream = errors.New("upstream store failure")
	// ErrUnknownTable is returned for tables outside PrimaryKeys.
	ErrUnknownTable = errors.New("unknown table")
)

// Filter is a set of column = value conditions joined with AND.
type Filter map[string]any

// Query describes a read against one table.
type Query struct {
	Select []string
	Eq     Filter
	Order  string
	Desc   bool
	Limit  int
}

// Store is the read/write surface the domain packages depend on.
//
// Select decodes matching rows into dest, which must point to a slice.
// Insert writes one row and, when dest is non-nil, decodes the stored
// representation (a one-element slice) into it. Patch applies a partial
// update to every row matching filter.
type Store interface {
	Select(ctx context.Context, table string, q Query, dest any) error
	Insert(ctx context.Context, table string, row any, dest any) error
	Patch(ctx context.Context, table string, filter Filter, patch any) error
}

// UpstreamError carries the details of a failed store call. Details are meant
// for server logs only.
type UpstreamError struct {
	Op     string
	Table  string
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
	default:
		return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Table, e.Status, e.Body)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Latest returns the newest row of table matching eq, or nil when none exists.
func Latest[T any](ctx context.Context, s Store, table string, eq Filter) (*T, error) {
	var rows []T
	q := Query{Eq: eq, Order: DefaultOrderColumn, Desc: true, Limit: 1}
	if err := s.Select(ctx, table, q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// FormatValue renders a filter value the way the REST backend expects it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Values encodes the query with the PostgREST conventions
// (col=eq.v, order=col.desc, limit=n, select=a,b).
func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.Select) > 0 {
		v.Set("select", strings.Join(q.Select, ","))
	}
	for _, col := range q.Eq.columns() {
		v.Set(col, "eq."+FormatValue(q.Eq[col]))
	}
	if q.Order != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		v.Set("order", q.Order+"."+dir)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Values encodes the filter as PostgREST eq conditions.
func (f Filter) Values() url.Values {
	v := url.Values{}
	for _, col := range f.columns() {
		v.Set(col, "eq."+FormatValue(f[col]))
	}
	return v
}

func (f Filter) columns() []string {
	cols := make([]string, 0, len(f))
	for k := range f {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Columns returns the filter's columns in a stable order.
func (f Filter) Columns() []string { return f.columns() }

// CheckTable reports ErrUnknownTable for tables the service does not manage.
func CheckTable(table string) error {
	if _, ok := PrimaryKeys[table]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}
