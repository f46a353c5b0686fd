package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Event describes a document event to store in the outbox.
type Event struct {
	OrgID     snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// DocumentEvent is the persisted outbox row. Rows are inserted inside the
// engine transaction that produced them and consumed by an external relay.
type DocumentEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey"`
	OrgID     snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_document_events_dedupe,priority:1"`
	EventType string            `gorm:"type:text;not null;index"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	DedupeKey *string           `gorm:"type:text;uniqueIndex:ux_document_events_dedupe,priority:2"`
	Published bool              `gorm:"not null;default:false"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DocumentEvent) TableName() string { return "document_events" }

// Outbox inserts document events into the document_events table.
type Outbox struct {
	genID *snowflake.Node
}

func NewOutbox(genID *snowflake.Node) *Outbox {
	return &Outbox{genID: genID}
}

// PublishTx stores an event using an existing transaction. Duplicate dedupe
// keys are silently dropped.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if o == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if tx == nil {
		return errors.New("missing_transaction")
	}
	if event.OrgID == 0 {
		return errors.New("invalid_org_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	row := DocumentEvent{
		ID:        o.genID.Generate(),
		OrgID:     event.OrgID,
		EventType: name,
		Payload:   payload,
	}
	if dedupe := strings.TrimSpace(event.DedupeKey); dedupe != "" {
		row.DedupeKey = &dedupe
	}

	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}
