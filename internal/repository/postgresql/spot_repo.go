package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"park_api/internal/domain"
	"park_api/internal/repository"
)

const pgUniqueViolation = "23505"

type pgSpotRepository struct {
	db *sql.DB
}

func NewPgSpotRepository(db *sql.DB) repository.SpotRepository {
	return &pgSpotRepository{db: db}
}

func (r *pgSpotRepository) Create(ctx context.Context, spot *domain.Spot) (*domain.Spot, error) {
	if spot.Status == "" {
		spot.Status = domain.SpotFree
	}
	query := `INSERT INTO parking_spots (code, status, created_at, updated_at)
	           VALUES ($1, $2, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, spot.Code, spot.Status).
		Scan(&spot.ID, &spot.CreatedAt, &spot.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: spot code '%s' is already registered", repository.ErrDuplicateEntry, spot.Code)
		}
		return nil, fmt.Errorf("SpotRepository.Create: %w", err)
	}
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) FindByCode(ctx context.Context, code string) (*domain.Spot, error) {
	spot := &domain.Spot{}
	query := `SELECT id, code, status, created_at, updated_at FROM parking_spots WHERE code = $1`
	err := r.db.QueryRowContext(ctx, query, code).
		Scan(&spot.ID, &spot.Code, &spot.Status, &spot.CreatedAt, &spot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SpotRepository.FindByCode: %w", err)
	}
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) FindAll(ctx context.Context) ([]domain.Spot, error) {
	query := `SELECT id, code, status, created_at, updated_at FROM parking_spots ORDER BY code`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var spots []domain.Spot
	for rows.Next() {
		var spot domain.Spot
		if err := rows.Scan(&spot.ID, &spot.Code, &spot.Status, &spot.CreatedAt, &spot.UpdatedAt); err != nil {
			return nil, fmt.Errorf("SpotRepository.FindAll (scanning row): %w", err)
		}
		spot.CreatedAt = spot.CreatedAt.In(time.UTC)
		spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
		spots = append(spots, spot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SpotRepository.FindAll (rows error): %w", err)
	}
	return spots, nil
}

// ClaimFirstFree flips the lowest-code free spot to occupied in a
// single statement. FOR UPDATE SKIP LOCKED keeps concurrent claims
// from racing on the same row without serializing claims of different
// spots.
func (r *pgSpotRepository) ClaimFirstFree(ctx context.Context) (*domain.Spot, error) {
	spot := &domain.Spot{}
	query := `UPDATE parking_spots
	           SET status = $1, updated_at = CURRENT_TIMESTAMP
	           WHERE id = (
	               SELECT id FROM parking_spots
	               WHERE status = $2
	               ORDER BY code ASC
	               LIMIT 1
	               FOR UPDATE SKIP LOCKED
	           )
	           RETURNING id, code, status, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, domain.SpotOccupied, domain.SpotFree).
		Scan(&spot.ID, &spot.Code, &spot.Status, &spot.CreatedAt, &spot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNoFreeSpot
		}
		return nil, fmt.Errorf("SpotRepository.ClaimFirstFree: %w", err)
	}
	spot.CreatedAt = spot.CreatedAt.In(time.UTC)
	spot.UpdatedAt = spot.UpdatedAt.In(time.UTC)
	return spot, nil
}

func (r *pgSpotRepository) Release(ctx context.Context, id int) error {
	query := `UPDATE parking_spots
	           SET status = $1, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, domain.SpotFree, id, domain.SpotOccupied)
	if err != nil {
		return fmt.Errorf("SpotRepository.Release: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SpotRepository.Release (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		// Distinguish an unknown spot from one that is already free.
		var exists bool
		err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM parking_spots WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("SpotRepository.Release (checking existence): %w", err)
		}
		if !exists {
			return repository.ErrNotFound
		}
		return fmt.Errorf("%w: spot id %d", repository.ErrSpotNotOccupied, id)
	}
	return nil
}
