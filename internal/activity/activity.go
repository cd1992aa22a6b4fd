// Package activity keeps the audit trail of administrative and sale actions.
package activity

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"storepos/m/domain"
	"storepos/m/internal/apperr"
	"storepos/m/internal/store"
)

// Action codes written to the log.
const (
	SaleRecorded            = "SALE_RECORDED"
	SaleRecordFailed        = "SALE_RECORD_FAILED"
	CheckoutRecorded        = "CHECKOUT_RECORDED"
	CheckoutFailed          = "CHECKOUT_FAILED"
	InstallmentPaid         = "INSTALLMENT_PAID"
	InstallmentReopened     = "INSTALLMENT_REOPENED"
	InstallmentUpdateFailed = "INSTALLMENT_UPDATE_FAILED"
	SaleStatusUpdated       = "SALE_STATUS_UPDATED"
	SaleStatusFailed        = "SALE_STATUS_FAILED"
	SaleDeleted             = "SALE_DELETED"
	SaleDeleteFailed        = "SALE_DELETE_FAILED"
	UserCreated             = "USER_CREATED"
	UserUpdated             = "USER_UPDATED"
	UserDeleted             = "USER_DELETED"
	UserDebtAdjusted        = "USER_DEBT_ADJUSTED"
	ProductCreated          = "PRODUCT_CREATED"
	ProductUpdated          = "PRODUCT_UPDATED"
	ProductDeleted          = "PRODUCT_DELETED"
	ProductsImported        = "PRODUCTS_IMPORTED"
	Login                   = "LOGIN"
)

// Recorder writes audit entries. Implementations must not fail the caller.
type Recorder interface {
	Record(ctx context.Context, actorID int64, action, details string)
}

// Log persists activity entries in the activity_log table.
type Log struct {
	store  *store.Store
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Log.
func New(s *store.Store, logger zerolog.Logger) *Log {
	return &Log{store: s, logger: logger, now: time.Now}
}

// Record appends an entry. actorID 0 is stored as a system action. A failed
// write is logged and dropped.
func (l *Log) Record(ctx context.Context, actorID int64, action, details string) {
	actor := sql.NullInt64{Int64: actorID, Valid: actorID > 0}
	date := l.now().Format("2006-01-02 15:04:05")
	err := l.store.Write(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO activity_log (date, user_id, action, details) VALUES (?, ?, ?, ?)`,
			date, actor, action, details)
		return err
	})
	if err != nil {
		l.logger.Warn().Err(err).Str("action", action).Int64("actor_id", actorID).Msg("unable to write activity log")
	}
}

// Recent returns the newest entries first.
func (l *Log) Recent(ctx context.Context, limit int) ([]domain.Activity, error) {
	if limit <= 0 {
		limit = 10
	}
	entries := []domain.Activity{}
	err := l.store.Read(ctx, func(q store.Querier) error {
		return q.SelectContext(ctx, &entries, `SELECT al.id, al.date, al.user_id, COALESCE(u.name, '') AS user_name, al.action, al.details
                FROM activity_log al
                LEFT JOIN users u ON u.id = al.user_id
                ORDER BY al.date DESC, al.id DESC
                LIMIT ?`, limit)
	})
	if err != nil {
		return nil, apperr.Persistence("unable to load activity log", err)
	}
	return entries, nil
}
