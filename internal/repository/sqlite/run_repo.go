package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"payrecon/internal/domain"
	"payrecon/internal/port"
)

type runRepo struct {
	db *sqlx.DB
}

// NewRunRepo creates a SQLite-backed RunRepository.
func NewRunRepo(db *sqlx.DB) port.RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) Create(ctx context.Context, run *domain.RunRecord) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO runs (id, state, started_at, error) VALUES (?, ?, ?, '')",
		run.ID, run.State, run.StartedAt)
	if err != nil {
		return fmt.Errorf("runRepo.Create: %w", err)
	}
	return nil
}

func (r *runRepo) Complete(ctx context.Context, id uuid.UUID, state domain.RunState, runErr string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE runs SET state = ?, completed_at = ?, error = ? WHERE id = ?",
		state, time.Now().UTC(), runErr, id)
	if err != nil {
		return fmt.Errorf("runRepo.Complete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("runRepo.Complete rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	var run domain.RunRecord
	err := r.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("runRepo.GetByID: %w", err)
	}
	return &run, nil
}

func (r *runRepo) GetLatest(ctx context.Context) (*domain.RunRecord, error) {
	var run domain.RunRecord
	err := r.db.GetContext(ctx, &run, "SELECT * FROM runs ORDER BY started_at DESC LIMIT 1")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("runRepo.GetLatest: %w", err)
	}
	return &run, nil
}
