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

type resultRepo struct {
	db *sqlx.DB
}

// NewResultRepo creates a SQLite-backed ResultRepository.
func NewResultRepo(db *sqlx.DB) port.ResultRepository {
	return &resultRepo{db: db}
}

const resultInsert = `INSERT INTO reconciliation_results (
	id, run_id, advice_id, file_name, bank_reference,
	invoice_number, normalized_key, customer_name,
	status, confidence, advice_amount, allocated_amount, invoice_amount, amount_delta,
	write_back_state, write_back_error, reason, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (r *resultRepo) Create(ctx context.Context, result *domain.ReconciliationResult) error {
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, resultInsert, resultArgs(result)...)
	if err != nil {
		return fmt.Errorf("resultRepo.Create: %w", err)
	}
	return nil
}

func (r *resultRepo) CreateBatch(ctx context.Context, results []domain.ReconciliationResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("resultRepo.CreateBatch begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range results {
		if results[i].CreatedAt.IsZero() {
			results[i].CreatedAt = now
		}
		results[i].UpdatedAt = now
		if _, err := tx.ExecContext(ctx, resultInsert, resultArgs(&results[i])...); err != nil {
			return fmt.Errorf("resultRepo.CreateBatch %s: %w", results[i].InvoiceNumber, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("resultRepo.CreateBatch commit: %w", err)
	}
	return nil
}

func (r *resultRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReconciliationResult, error) {
	var row resultRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM reconciliation_results WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("resultRepo.GetByID: %w", err)
	}
	return row.toDomain()
}

func (r *resultRepo) ListByRun(ctx context.Context, runID uuid.UUID, offset, limit int) ([]domain.ReconciliationResult, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM reconciliation_results WHERE run_id = ?", runID)
	if err != nil {
		return nil, 0, fmt.Errorf("resultRepo.ListByRun count: %w", err)
	}

	var rows []resultRow
	err = r.db.SelectContext(ctx, &rows,
		`SELECT * FROM reconciliation_results WHERE run_id = ?
		 ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, runID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("resultRepo.ListByRun: %w", err)
	}
	results, err := toDomainResults(rows)
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *resultRepo) ListByStatus(ctx context.Context, runID uuid.UUID, status domain.MatchStatus) ([]domain.ReconciliationResult, error) {
	var rows []resultRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM reconciliation_results WHERE run_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC`, runID, status)
	if err != nil {
		return nil, fmt.Errorf("resultRepo.ListByStatus: %w", err)
	}
	return toDomainResults(rows)
}

func (r *resultRepo) SearchByInvoice(ctx context.Context, invoiceNumber string) ([]domain.ReconciliationResult, error) {
	key := domain.NormalizeInvoiceKey(invoiceNumber)
	var rows []resultRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM reconciliation_results
		 WHERE normalized_key = ? OR invoice_number LIKE ?
		 ORDER BY created_at DESC`, key, "%"+invoiceNumber+"%")
	if err != nil {
		return nil, fmt.Errorf("resultRepo.SearchByInvoice: %w", err)
	}
	return toDomainResults(rows)
}

func (r *resultRepo) UpdateWriteBack(ctx context.Context, id uuid.UUID, state domain.WriteBackState, writeErr string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reconciliation_results SET write_back_state = ?, write_back_error = ?, updated_at = ?
		 WHERE id = ?`, state, writeErr, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("resultRepo.UpdateWriteBack: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resultRepo.UpdateWriteBack rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *resultRepo) DeleteByRun(ctx context.Context, runID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM reconciliation_results WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("resultRepo.DeleteByRun: %w", err)
	}
	return nil
}

func (r *resultRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM reconciliation_results"); err != nil {
		return fmt.Errorf("resultRepo.DeleteAll: %w", err)
	}
	return nil
}

func resultArgs(res *domain.ReconciliationResult) []any {
	return []any{
		res.ID, res.RunID, res.AdviceID, res.FileName, res.BankReference,
		res.InvoiceNumber, res.NormalizedKey, res.CustomerName,
		res.Status, res.Confidence,
		res.AdviceAmount.String(), res.AllocatedAmt.String(), res.InvoiceAmount.String(), res.AmountDelta.String(),
		res.WriteBackState, res.WriteBackError, res.Reason, res.CreatedAt, res.UpdatedAt,
	}
}

type resultRow struct {
	ID             uuid.UUID             `db:"id"`
	RunID          uuid.UUID             `db:"run_id"`
	AdviceID       uuid.UUID             `db:"advice_id"`
	FileName       string                `db:"file_name"`
	BankReference  string                `db:"bank_reference"`
	InvoiceNumber  string                `db:"invoice_number"`
	NormalizedKey  string                `db:"normalized_key"`
	CustomerName   string                `db:"customer_name"`
	Status         domain.MatchStatus    `db:"status"`
	Confidence     int                   `db:"confidence"`
	AdviceAmount   string                `db:"advice_amount"`
	AllocatedAmt   string                `db:"allocated_amount"`
	InvoiceAmount  string                `db:"invoice_amount"`
	AmountDelta    string                `db:"amount_delta"`
	WriteBackState domain.WriteBackState `db:"write_back_state"`
	WriteBackError string                `db:"write_back_error"`
	Reason         string                `db:"reason"`
	CreatedAt      time.Time             `db:"created_at"`
	UpdatedAt      time.Time             `db:"updated_at"`
}

func (row *resultRow) toDomain() (*domain.ReconciliationResult, error) {
	amounts := make([]decimal.Decimal, 4)
	for i, s := range []string{row.AdviceAmount, row.AllocatedAmt, row.InvoiceAmount, row.AmountDelta} {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("result %s amount %q: %w", row.ID, s, err)
		}
		amounts[i] = d
	}
	return &domain.ReconciliationResult{
		ID:             row.ID,
		RunID:          row.RunID,
		AdviceID:       row.AdviceID,
		FileName:       row.FileName,
		BankReference:  row.BankReference,
		InvoiceNumber:  row.InvoiceNumber,
		NormalizedKey:  row.NormalizedKey,
		CustomerName:   row.CustomerName,
		Status:         row.Status,
		Confidence:     row.Confidence,
		AdviceAmount:   amounts[0],
		AllocatedAmt:   amounts[1],
		InvoiceAmount:  amounts[2],
		AmountDelta:    amounts[3],
		WriteBackState: row.WriteBackState,
		WriteBackError: row.WriteBackError,
		Reason:         row.Reason,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

func toDomainResults(rows []resultRow) ([]domain.ReconciliationResult, error) {
	out := make([]domain.ReconciliationResult, 0, len(rows))
	for i := range rows {
		res, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}
