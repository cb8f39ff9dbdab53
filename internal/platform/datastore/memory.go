package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used for development and tests. Rows are kept
// as decoded JSON objects so every backend sees the same wire shapes.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]memRow
	nextID map[string]int64
	seq    int64
	now    func() time.Time
}

type memRow struct {
	seq  int64
	data map[string]any
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string][]memRow),
		nextID: make(map[string]int64),
		now:    time.Now,
	}
}

// SetClock replaces the clock used for created_at defaults.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Select(_ context.Context, table string, q Query, dest any) error {
	if err := CheckTable(table); err != nil {
		return err
	}
	m.mu.RLock()
	rows := m.match(table, q.Eq)
	m.mu.RUnlock()

	if q.Order != "" {
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := FormatValue(rows[i].data[q.Order]), FormatValue(rows[j].data[q.Order])
			if a == b {
				if q.Desc {
					return rows[i].seq > rows[j].seq
				}
				return rows[i].seq < rows[j].seq
			}
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, project(r.data, q.Select))
	}
	return remarshal(out, dest)
}

func (m *Memory) Insert(_ context.Context, table string, row any, dest any) error {
	if err := CheckTable(table); err != nil {
		return err
	}
	data, err := toMap(row)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}

	m.mu.Lock()
	pk := PrimaryKeys[table]
	if id, ok := data[pk]; !ok || FormatValue(id) == "0" {
		m.nextID[table]++
		data[pk] = json.Number(FormatValue(m.nextID[table]))
	} else if num, ok := id.(json.Number); ok {
		if n, err := num.Int64(); err == nil && n > m.nextID[table] {
			m.nextID[table] = n
		}
	}
	if _, ok := data["created_at"]; !ok {
		data["created_at"] = m.now().UTC().Format(TimestampLayout)
	}
	m.seq++
	m.tables[table] = append(m.tables[table], memRow{seq: m.seq, data: data})
	stored := cloneMap(data)
	m.mu.Unlock()

	if dest == nil {
		return nil
	}
	return remarshal([]map[string]any{stored}, dest)
}

func (m *Memory) Patch(_ context.Context, table string, filter Filter, patch any) error {
	if err := CheckTable(table); err != nil {
		return err
	}
	if len(filter) == 0 {
		return fmt.Errorf("patch %s: refusing to update without a filter", table)
	}
	changes, err := toMap(patch)
	if err != nil {
		return fmt.Errorf("patch %s: %w", table, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.tables[table] {
		if !matches(r.data, filter) {
			continue
		}
		for k, v := range changes {
			m.tables[table][i].data[k] = v
		}
	}
	return nil
}

// Rows returns a copy of every row in table, in insertion order.
func (m *Memory) Rows(table string) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]map[string]any, 0, len(m.tables[table]))
	for _, r := range m.tables[table] {
		out = append(out, cloneMap(r.data))
	}
	return out
}

// match must be called with the lock held.
func (m *Memory) match(table string, eq Filter) []memRow {
	var out []memRow
	for _, r := range m.tables[table] {
		if matches(r.data, eq) {
			out = append(out, memRow{seq: r.seq, data: cloneMap(r.data)})
		}
	}
	return out
}

func matches(row map[string]any, eq Filter) bool {
	for col, want := range eq {
		got, ok := row[col]
		if !ok || got == nil || FormatValue(got) != FormatValue(want) {
			return false
		}
	}
	return true
}

func project(row map[string]any, cols []string) map[string]any {
	if len(cols) == 0 {
		return row
	}
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("row must encode to a JSON object: %w", err)
	}
	return out, nil
}

func remarshal(src, dest any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
