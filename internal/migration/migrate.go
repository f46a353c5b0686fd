package migration

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/quoteflow/internal/audit/domain"
	"github.com/smallbiznis/quoteflow/internal/docnumber"
	"github.com/smallbiznis/quoteflow/internal/events"
	invoicedomain "github.com/smallbiznis/quoteflow/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/quoteflow/internal/payment/domain"
	quotedomain "github.com/smallbiznis/quoteflow/internal/quote/domain"
)

// RunMigrations applies the embedded SQL migrations against postgres.
func RunMigrations(sqlDB *sql.DB) error {
	source, err := iofs.New(embeddedMigrations, migrationsDir)
	if err != nil {
		return err
	}
	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// RunAutoMigrate builds the schema from the gorm models. It backs the
// sqlite development and test path, where the versioned SQL does not apply.
func RunAutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&quotedomain.Quote{},
		&quotedomain.QuoteItem{},
		&quotedomain.QuoteStatusHistory{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceStatusHistory{},
		&paymentdomain.Payment{},
		&docnumber.DocumentCounter{},
		&events.DocumentEvent{},
		&auditdomain.AuditLog{},
	)
}
