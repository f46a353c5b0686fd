// Package docnumber issues unique, human-scannable quote and invoice
// numbers. Numbers follow PREFIX-YEAR-SEQ, allocated from a per-org,
// per-year counter row that is incremented under the caller's transaction.
// Two concurrent allocations serialize on the counter row, so the same
// sequence value is never handed out twice.
package docnumber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	clockpkg "github.com/smallbiznis/quoteflow/internal/clock"
	"github.com/smallbiznis/quoteflow/internal/document"
	pkgdb "github.com/smallbiznis/quoteflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DocTypeQuote   = "quote"
	DocTypeInvoice = "invoice"

	quotePrefix   = "Q"
	invoicePrefix = "INV"
)

// DocumentCounter tracks the next sequence per org, document type, and year.
type DocumentCounter struct {
	OrgID     snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	DocType   string       `gorm:"primaryKey;type:text"`
	Year      int          `gorm:"primaryKey;autoIncrement:false"`
	NextSeq   int64        `gorm:"not null;default:1"`
	UpdatedAt time.Time
}

// TableName sets the database table name.
func (DocumentCounter) TableName() string { return "document_counters" }

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clockpkg.Clock
}

// Service allocates document numbers.
type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clockpkg.Clock
}

func NewService(p Params) *Service {
	return &Service{
		log:   p.Log.Named("docnumber.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// NextQuoteNumber allocates the next quote number inside tx.
func (s *Service) NextQuoteNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (string, error) {
	return s.next(ctx, tx, orgID, DocTypeQuote, quotePrefix)
}

// NextInvoiceNumber allocates the next invoice number inside tx.
func (s *Service) NextInvoiceNumber(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (string, error) {
	return s.next(ctx, tx, orgID, DocTypeInvoice, invoicePrefix)
}

// MaxAttempts is how many counter allocations a caller should try before
// switching to Fallback. Conflicts come from caller-supplied numbers
// already occupying a counter value, or from two first-of-year
// allocations racing on the counter row.
const MaxAttempts = 3

// Fallback returns a globally unique number for the document type, used
// after MaxAttempts counter allocations each collided with a number
// already in the table.
func (s *Service) Fallback(docType string) string {
	prefix := quotePrefix
	if docType == DocTypeInvoice {
		prefix = invoicePrefix
	}
	return fmt.Sprintf("%s-%s", prefix, s.genID.Generate())
}

func (s *Service) next(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, docType, prefix string) (string, error) {
	year := s.clock.Now().Year()

	var counter DocumentCounter
	err := pkgdb.ForUpdate(tx.WithContext(ctx)).
		Where("org_id = ? AND doc_type = ? AND year = ?", orgID, docType, year).
		First(&counter).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		counter = DocumentCounter{OrgID: orgID, DocType: docType, Year: year, NextSeq: 2, UpdatedAt: s.clock.Now()}
		if err := tx.WithContext(ctx).Create(&counter).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Two first-of-year allocations raced on the counter row.
				return "", &document.ConflictError{Resource: "document_counter", Value: fmt.Sprintf("%s/%d", docType, year)}
			}
			return "", err
		}
		return format(prefix, year, 1), nil
	}

	seq := counter.NextSeq
	err = tx.WithContext(ctx).Model(&DocumentCounter{}).
		Where("org_id = ? AND doc_type = ? AND year = ?", orgID, docType, year).
		Updates(map[string]any{"next_seq": seq + 1, "updated_at": s.clock.Now()}).Error
	if err != nil {
		return "", err
	}
	return format(prefix, year, seq), nil
}

func format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq)
}

var Module = fx.Module("docnumber.service",
	fx.Provide(NewService),
)
