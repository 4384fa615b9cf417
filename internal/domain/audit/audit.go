// Package audit defines the contract for the append-only audit trail of
// ledger mutations. The storage implementation lives in infrastructure.
package audit

import (
	"context"
	"time"

	"cellhub/internal/core/id"
)

// Entry is a single audit record. Changes holds the JSON-serializable
// payload describing what the operation did.
type Entry struct {
	ID         id.ID     `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   id.ID     `db:"entity_id" json:"entityId"`
	Action     string    `db:"action" json:"action"`
	Changes    any       `db:"-" json:"changes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Recorder persists audit entries. Implementations must be safe to call
// inside the business transaction so a rolled-back operation leaves no trail.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop is a Recorder that discards entries. Used in tests.
type Nop struct{}

func (Nop) Record(ctx context.Context, entry Entry) error { return nil }
