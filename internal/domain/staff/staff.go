// Package staff resolves dashboard users for attribution on workflow records.
package staff

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bloodbank/donorflow/internal/platform/datastore"
)

var ErrNotFound = errors.New("staff user not found")

// User is the read-only projection of the users table.
type User struct {
	UserID        int64  `json:"user_id"`
	FirstName     string `json:"first_name"`
	Surname       string `json:"surname"`
	OfficeAddress string `json:"office_address,omitempty"`
}

// DisplayName is "First Surname", used on medical history.
func (u *User) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.Surname))
}

// SortName is "Surname, First", used on screening records.
func (u *User) SortName() string {
	first, last := strings.TrimSpace(u.FirstName), strings.TrimSpace(u.Surname)
	if first != "" && last != "" {
		return last + ", " + first
	}
	return last + first
}

type Directory interface {
	Lookup(ctx context.Context, userID string) (*User, error)
}

type storeDirectory struct {
	store datastore.Store
}

func NewDirectory(store datastore.Store) Directory {
	return &storeDirectory{store: store}
}

var userColumns = []string{"user_id", "first_name", "surname", "office_address"}

func (d *storeDirectory) Lookup(ctx context.Context, userID string) (*User, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id %q", ErrNotFound, userID)
	}
	var rows []User
	q := datastore.Query{Select: userColumns, Eq: datastore.Filter{"user_id": id}, Limit: 1}
	if err := d.store.Select(ctx, datastore.TableUsers, q, &rows); err != nil {
		return nil, fmt.Errorf("lookup user %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}
