package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Service records and reads audit log entries. Writes are best-effort from
// the engines' perspective: a failed audit write is logged but never rolls
// back a committed transition.
type Service interface {
	AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
