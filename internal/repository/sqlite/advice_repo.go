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

type adviceRepo struct {
	db *sqlx.DB
}

// NewAdviceRepo creates a SQLite-backed AdviceRepository.
func NewAdviceRepo(db *sqlx.DB) port.AdviceRepository {
	return &adviceRepo{db: db}
}

func (r *adviceRepo) Create(ctx context.Context, advice *domain.PaymentAdvice) error {
	if advice.CreatedAt.IsZero() {
		advice.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("adviceRepo.Create begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO payment_advices (
		id, file_name, file_location, bank_reference, bank_name, customer_name,
		invoice_date, transaction_date, payment_date,
		gross_amount, tds_amount, net_amount, raw_text, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		advice.ID, advice.FileName, advice.FileLocation, advice.BankReference, advice.BankName, advice.CustomerName,
		advice.InvoiceDate, advice.TransactionDate, advice.PaymentDate,
		advice.GrossAmount.String(), advice.TDSAmount.String(), advice.NetAmount.String(),
		advice.RawText, advice.CreatedAt)
	if err != nil {
		return fmt.Errorf("adviceRepo.Create: %w", err)
	}

	for i, ref := range advice.InvoiceReferences {
		key := domain.NormalizeInvoiceKey(ref)
		var lineAmount any
		if amt, ok := advice.LineAmounts[key]; ok {
			lineAmount = amt.String()
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO advice_references
			(advice_id, position, reference, normalized_key, line_amount)
			VALUES (?, ?, ?, ?, ?)`,
			advice.ID, i, ref, key, lineAmount)
		if err != nil {
			return fmt.Errorf("adviceRepo.Create reference %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("adviceRepo.Create commit: %w", err)
	}
	return nil
}

func (r *adviceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentAdvice, error) {
	var row adviceRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM payment_advices WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("adviceRepo.GetByID: %w", err)
	}
	advice, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("adviceRepo.GetByID: %w", err)
	}
	if err := r.loadReferences(ctx, advice); err != nil {
		return nil, err
	}
	return advice, nil
}

func (r *adviceRepo) GetByBankReference(ctx context.Context, bankRef string) (*domain.PaymentAdvice, error) {
	var row adviceRow
	err := r.db.GetContext(ctx, &row,
		"SELECT * FROM payment_advices WHERE bank_reference = ? ORDER BY created_at DESC LIMIT 1", bankRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("adviceRepo.GetByBankReference: %w", err)
	}
	advice, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("adviceRepo.GetByBankReference: %w", err)
	}
	if err := r.loadReferences(ctx, advice); err != nil {
		return nil, err
	}
	return advice, nil
}

func (r *adviceRepo) List(ctx context.Context, offset, limit int) ([]domain.PaymentAdvice, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payment_advices"); err != nil {
		return nil, 0, fmt.Errorf("adviceRepo.List count: %w", err)
	}

	var rows []adviceRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM payment_advices ORDER BY created_at ASC LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("adviceRepo.List: %w", err)
	}

	advices := make([]domain.PaymentAdvice, 0, len(rows))
	for _, row := range rows {
		advice, err := row.toDomain()
		if err != nil {
			return nil, 0, fmt.Errorf("adviceRepo.List: %w", err)
		}
		if err := r.loadReferences(ctx, advice); err != nil {
			return nil, 0, err
		}
		advices = append(advices, *advice)
	}
	return advices, total, nil
}

func (r *adviceRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM advice_references"); err != nil {
		return fmt.Errorf("adviceRepo.DeleteAll references: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM payment_advices"); err != nil {
		return fmt.Errorf("adviceRepo.DeleteAll: %w", err)
	}
	return nil
}

func (r *adviceRepo) loadReferences(ctx context.Context, advice *domain.PaymentAdvice) error {
	var refs []struct {
		Reference     string         `db:"reference"`
		NormalizedKey string         `db:"normalized_key"`
		LineAmount    sql.NullString `db:"line_amount"`
	}
	err := r.db.SelectContext(ctx, &refs,
		"SELECT reference, normalized_key, line_amount FROM advice_references WHERE advice_id = ? ORDER BY position ASC",
		advice.ID)
	if err != nil {
		return fmt.Errorf("adviceRepo.loadReferences: %w", err)
	}
	for _, ref := range refs {
		advice.InvoiceReferences = append(advice.InvoiceReferences, ref.Reference)
		if ref.LineAmount.Valid {
			amt, err := decimal.NewFromString(ref.LineAmount.String)
			if err != nil {
				return fmt.Errorf("adviceRepo.loadReferences amount: %w", err)
			}
			if advice.LineAmounts == nil {
				advice.LineAmounts = map[string]decimal.Decimal{}
			}
			advice.LineAmounts[ref.NormalizedKey] = amt
		}
	}
	return nil
}

// adviceRow mirrors the payment_advices table; monetary columns are stored
// as decimal strings.
type adviceRow struct {
	ID              uuid.UUID  `db:"id"`
	FileName        string     `db:"file_name"`
	FileLocation    string     `db:"file_location"`
	BankReference   string     `db:"bank_reference"`
	BankName        string     `db:"bank_name"`
	CustomerName    string     `db:"customer_name"`
	InvoiceDate     *time.Time `db:"invoice_date"`
	TransactionDate *time.Time `db:"transaction_date"`
	PaymentDate     *time.Time `db:"payment_date"`
	GrossAmount     string     `db:"gross_amount"`
	TDSAmount       string     `db:"tds_amount"`
	NetAmount       string     `db:"net_amount"`
	RawText         string     `db:"raw_text"`
	CreatedAt       time.Time  `db:"created_at"`
}

func (row *adviceRow) toDomain() (*domain.PaymentAdvice, error) {
	gross, err := decimal.NewFromString(row.GrossAmount)
	if err != nil {
		return nil, fmt.Errorf("gross amount %q: %w", row.GrossAmount, err)
	}
	tds, err := decimal.NewFromString(row.TDSAmount)
	if err != nil {
		return nil, fmt.Errorf("tds amount %q: %w", row.TDSAmount, err)
	}
	net, err := decimal.NewFromString(row.NetAmount)
	if err != nil {
		return nil, fmt.Errorf("net amount %q: %w", row.NetAmount, err)
	}
	return &domain.PaymentAdvice{
		ID:              row.ID,
		FileName:        row.FileName,
		FileLocation:    row.FileLocation,
		BankReference:   row.BankReference,
		BankName:        row.BankName,
		CustomerName:    row.CustomerName,
		InvoiceDate:     row.InvoiceDate,
		TransactionDate: row.TransactionDate,
		PaymentDate:     row.PaymentDate,
		GrossAmount:     gross,
		TDSAmount:       tds,
		NetAmount:       net,
		RawText:         row.RawText,
		CreatedAt:       row.CreatedAt,
	}, nil
}
