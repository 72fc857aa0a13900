package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"payrecon/internal/domain"
	"payrecon/internal/port"
)

type writeBackLedgerRepo struct {
	db *sqlx.DB
}

// NewWriteBackLedger creates the SQLite-backed durable idempotency ledger.
func NewWriteBackLedger(db *sqlx.DB) port.WriteBackLedger {
	return &writeBackLedgerRepo{db: db}
}

func (r *writeBackLedgerRepo) Get(ctx context.Context, adviceID uuid.UUID, normalizedKey string) (*domain.WriteBackRecord, error) {
	var row writeBackRow
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM write_back_ledger WHERE advice_id = ? AND normalized_key = ?",
		adviceID, normalizedKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("writeBackLedger.Get: %w", err)
	}
	return row.toDomain()
}

func (r *writeBackLedgerRepo) Begin(ctx context.Context, rec *domain.WriteBackRecord) (*domain.WriteBackRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.State = domain.WriteBackPending

	// The unique (advice_id, normalized_key) index makes Begin a no-op for
	// an existing pair; the stored record wins.
	_, err := r.db.ExecContext(ctx, `INSERT INTO write_back_ledger
		(id, advice_id, normalized_key, invoice_number, bank_reference, amount, state, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)
		ON CONFLICT (advice_id, normalized_key) DO NOTHING`,
		rec.ID, rec.AdviceID, rec.NormalizedKey, rec.InvoiceNumber, rec.BankReference,
		rec.Amount.String(), rec.State, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("writeBackLedger.Begin: %w", err)
	}
	return r.Get(ctx, rec.AdviceID, rec.NormalizedKey)
}

func (r *writeBackLedgerRepo) MarkWritten(ctx context.Context, adviceID uuid.UUID, normalizedKey string) error {
	return r.setState(ctx, adviceID, normalizedKey, domain.WriteBackWritten, 0, "")
}

func (r *writeBackLedgerRepo) MarkFailed(ctx context.Context, adviceID uuid.UUID, normalizedKey string, attempts int, lastErr string) error {
	return r.setState(ctx, adviceID, normalizedKey, domain.WriteBackFailed, attempts, lastErr)
}

func (r *writeBackLedgerRepo) setState(ctx context.Context, adviceID uuid.UUID, normalizedKey string, state domain.WriteBackState, attempts int, lastErr string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE write_back_ledger
		SET state = ?, attempts = CASE WHEN ? > attempts THEN ? ELSE attempts END, last_error = ?, updated_at = ?
		WHERE advice_id = ? AND normalized_key = ? AND state != ?`,
		state, attempts, attempts, lastErr, time.Now().UTC(),
		adviceID, normalizedKey, domain.WriteBackWritten)
	if err != nil {
		return fmt.Errorf("writeBackLedger.setState: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("writeBackLedger.setState rows: %w", err)
	}
	if n == 0 {
		// Either the pair is unknown or it is already terminal WRITTEN.
		existing, getErr := r.Get(ctx, adviceID, normalizedKey)
		if getErr != nil {
			return getErr
		}
		if existing.State == domain.WriteBackWritten && state != domain.WriteBackWritten {
			return &domain.InvalidStateError{From: existing.State, To: state}
		}
	}
	return nil
}

func (r *writeBackLedgerRepo) ListByState(ctx context.Context, state domain.WriteBackState) ([]domain.WriteBackRecord, error) {
	var rows []writeBackRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM write_back_ledger WHERE state = ? ORDER BY created_at ASC", state)
	if err != nil {
		return nil, fmt.Errorf("writeBackLedger.ListByState: %w", err)
	}
	out := make([]domain.WriteBackRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

type writeBackRow struct {
	ID            uuid.UUID             `db:"id"`
	AdviceID      uuid.UUID             `db:"advice_id"`
	NormalizedKey string                `db:"normalized_key"`
	InvoiceNumber string                `db:"invoice_number"`
	BankReference string                `db:"bank_reference"`
	Amount        string                `db:"amount"`
	State         domain.WriteBackState `db:"state"`
	Attempts      int                   `db:"attempts"`
	LastError     string                `db:"last_error"`
	CreatedAt     time.Time             `db:"created_at"`
	UpdatedAt     time.Time             `db:"updated_at"`
}

func (row *writeBackRow) toDomain() (*domain.WriteBackRecord, error) {
	amt, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return nil, fmt.Errorf("writeback record %s amount %q: %w", row.ID, row.Amount, err)
	}
	return &domain.WriteBackRecord{
		ID:            row.ID,
		AdviceID:      row.AdviceID,
		NormalizedKey: row.NormalizedKey,
		InvoiceNumber: row.InvoiceNumber,
		BankReference: row.BankReference,
		Amount:        amt,
		State:         row.State,
		Attempts:      row.Attempts,
		LastError:     row.LastError,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}
