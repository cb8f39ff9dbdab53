// Package session persists per-browser workflow state under an opaque id
// carried in a cookie. Values are stored as JSON.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("session not found")

// Store loads and saves session values. Get returns ErrNotFound for a
// missing or expired id. Writes are last-write-wins.
type Store interface {
	Get(ctx context.Context, id string, dest any) error
	Set(ctx context.Context, id string, v any) error
	Clear(ctx context.Context, id string) error
}

func encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return b, nil
}

func decode(b []byte, dest any) error {
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}
	return nil
}
