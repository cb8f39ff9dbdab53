package db

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(s string) bool { return identRe.MatchString(s) }

// querier is the subset of *pgxpool.Pool used by PGStore.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGStore implements datastore.Store directly on Postgres. Rows travel as
// JSON in both directions so record types need no pgx-specific scanning.
type PGStore struct {
	q querier
}

func NewPGStore(q querier) *PGStore {
	return &PGStore{q: q}
}

func (s *PGStore) Select(ctx context.Context, table string, q datastore.Query, dest any) error {
	sql, args, err := buildSelect(table, q)
	if err != nil {
		return err
	}
	var raw []byte
	if err := s.q.QueryRow(ctx, sql, args...).Scan(&raw); err != nil {
		return &datastore.UpstreamError{Op: "select", Table: table, Err: err}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return &datastore.UpstreamError{Op: "select", Table: table, Err: fmt.Errorf("decode rows: %w", err)}
	}
	return nil
}

func (s *PGStore) Insert(ctx context.Context, table string, row any, dest any) error {
	payload, cols, err := encodeRow(row)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	sql, err := buildInsert(table, cols)
	if err != nil {
		return err
	}
	var raw []byte
	if err := s.q.QueryRow(ctx, sql, payload).Scan(&raw); err != nil {
		return &datastore.UpstreamError{Op: "insert", Table: table, Err: err}
	}
	if dest == nil {
		return nil
	}
	// Match the REST backend, which answers inserts with a one-element array.
	wrapped := append(append([]byte{'['}, raw...), ']')
	if err := json.Unmarshal(wrapped, dest); err != nil {
		return &datastore.UpstreamError{Op: "insert", Table: table, Err: fmt.Errorf("decode row: %w", err)}
	}
	return nil
}

func (s *PGStore) Patch(ctx context.Context, table string, filter datastore.Filter, patch any) error {
	payload, cols, err := encodeRow(patch)
	if err != nil {
		return fmt.Errorf("patch %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil
	}
	sql, args, err := buildPatch(table, cols, filter)
	if err != nil {
		return err
	}
	args = append([]any{payload}, args...)
	if _, err := s.q.Exec(ctx, sql, args...); err != nil {
		return &datastore.UpstreamError{Op: "patch", Table: table, Err: err}
	}
	return nil
}

func encodeRow(row any) (string, []string, error) {
	b, err := json.Marshal(row)
	if err != nil {
		return "", nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return "", nil, fmt.Errorf("row must encode to a JSON object: %w", err)
	}
	cols := make([]string, 0, len(m))
	for k := range m {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return string(b), cols, nil
}

func checkIdents(table string, cols []string) error {
	if err := datastore.CheckTable(table); err != nil {
		return err
	}
	for _, c := range cols {
		if !validIdent(c) {
			return fmt.Errorf("invalid column name %q", c)
		}
	}
	return nil
}

func whereClause(filter datastore.Filter, firstArg int) (string, []any) {
	cols := filter.Columns()
	if len(cols) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		conds = append(conds, fmt.Sprintf("%s::text = $%d", c, firstArg+i))
		args = append(args, datastore.FormatValue(filter[c]))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildSelect(table string, q datastore.Query) (string, []any, error) {
	idents := append(append([]string{}, q.Select...), q.Eq.Columns()...)
	if q.Order != "" {
		idents = append(idents, q.Order)
	}
	if err := checkIdents(table, idents); err != nil {
		return "", nil, err
	}

	cols := "*"
	if len(q.Select) > 0 {
		cols = strings.Join(q.Select, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, table)
	where, args := whereClause(q.Eq, 1)
	b.WriteString(where)
	if q.Order != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", q.Order, dir)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return fmt.Sprintf("SELECT coalesce(json_agg(t), '[]'::json) FROM (%s) t", b.String()), args, nil
}

func buildInsert(table string, cols []string) (string, error) {
	if err := checkIdents(table, cols); err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %[1]s DEFAULT VALUES RETURNING row_to_json(%[1]s)", table), nil
	}
	list := strings.Join(cols, ", ")
	return fmt.Sprintf(
		"INSERT INTO %[1]s (%[2]s) SELECT %[2]s FROM json_populate_record(NULL::%[1]s, $1::json) RETURNING row_to_json(%[1]s)",
		table, list,
	), nil
}

func buildPatch(table string, cols []string, filter datastore.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, fmt.Errorf("patch %s: refusing to update without a filter", table)
	}
	if err := checkIdents(table, append(append([]string{}, cols...), filter.Columns()...)); err != nil {
		return "", nil, err
	}
	list := strings.Join(cols, ", ")
	target := list
	if len(cols) > 1 {
		target = "(" + list + ")"
	}
	where, args := whereClause(filter, 2)
	sql := fmt.Sprintf(
		"UPDATE %[1]s SET %[2]s = (SELECT %[3]s FROM json_populate_record(NULL::%[1]s, $1::json))%[4]s",
		table, target, list, where,
	)
	return sql, args, nil
}
