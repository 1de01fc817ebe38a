// Package ledger keeps an audit trail of placed orders so a workspace can
// list them without walking the blob store.
package ledger

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("ledger entry not found")

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

// Entry is one order record as it was written.
type Entry struct {
	ID         string    `db:"id" bson:"id" json:"id"`
	Workspace  string    `db:"workspace" bson:"workspace" json:"workspace"`
	Catalog    string    `db:"catalog" bson:"catalog" json:"catalog"`
	Collection string    `db:"collection" bson:"collection" json:"collection"`
	ItemID     string    `db:"item_id" bson:"item_id" json:"item_id"`
	Tag        string    `db:"tag" bson:"tag" json:"tag"`
	Status     string    `db:"status" bson:"status" json:"status"`
	ItemKey    string    `db:"item_key" bson:"item_key" json:"item_key"`
	Location   string    `db:"location" bson:"location" json:"location"`
	CreatedAt  time.Time `db:"created_at" bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" bson:"updated_at" json:"updated_at"`
}

// Store persists ledger entries.
type Store interface {
	// Append records e, assigning its ID and timestamps.
	Append(ctx context.Context, e Entry) (Entry, error)
	UpdateStatus(ctx context.Context, id, status string) error
	// List returns the newest entries of a workspace first.
	List(ctx context.Context, workspace string, limit int) ([]Entry, error)
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return DefaultLimit
	}
	return limit
}

// Discard is a Store that keeps nothing.
type Discard struct{}

func (Discard) Append(_ context.Context, e Entry) (Entry, error) { return e, nil }

func (Discard) UpdateStatus(context.Context, string, string) error { return nil }

func (Discard) List(context.Context, string, int) ([]Entry, error) { return []Entry{}, nil }

func (Discard) Close() error { return nil }
