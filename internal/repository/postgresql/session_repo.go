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

type pgSessionRepository struct {
	db *sql.DB
}

func NewPgSessionRepository(db *sql.DB) repository.SessionRepository {
	return &pgSessionRepository{db: db}
}

const sessionColumns = `s.id, s.receipt, s.plate, s.brand, s.model, s.color,
	                 s.client_id, s.spot_id, s.entry_time, s.exit_time, s.fee, s.status,
	                 s.created_at, s.updated_at, c.tax_id, p.code`

const sessionJoins = ` FROM parking_sessions s
	           JOIN clients c ON c.id = s.client_id
	           JOIN parking_spots p ON p.id = s.spot_id`

func scanSession(row interface{ Scan(...any) error }, session *domain.ParkingSession) error {
	err := row.Scan(
		&session.ID, &session.Receipt, &session.Plate, &session.Brand, &session.Model, &session.Color,
		&session.ClientID, &session.SpotID, &session.EntryTime, &session.ExitTime, &session.Fee, &session.Status,
		&session.CreatedAt, &session.UpdatedAt, &session.ClientTaxID, &session.SpotCode,
	)
	if err != nil {
		return err
	}
	session.EntryTime = session.EntryTime.In(time.UTC)
	if session.ExitTime.Valid {
		session.ExitTime.Time = session.ExitTime.Time.In(time.UTC)
	}
	session.CreatedAt = session.CreatedAt.In(time.UTC)
	session.UpdatedAt = session.UpdatedAt.In(time.UTC)
	return nil
}

func (r *pgSessionRepository) Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	if session.Status == "" {
		session.Status = domain.SessionOpen
	}
	query := `INSERT INTO parking_sessions
	           (receipt, plate, brand, model, color, client_id, spot_id, entry_time, status, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		session.Receipt, session.Plate, session.Brand, session.Model, session.Color,
		session.ClientID, session.SpotID, session.EntryTime, session.Status,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == "parking_sessions_open_spot_key" {
				return nil, fmt.Errorf("%w: spot id %d already has an open session", repository.ErrDuplicateEntry, session.SpotID)
			}
			return nil, fmt.Errorf("%w: receipt '%s' is already issued", repository.ErrDuplicateEntry, session.Receipt)
		}
		return nil, fmt.Errorf("SessionRepository.Create: %w", err)
	}
	session.EntryTime = session.EntryTime.In(time.UTC)
	session.CreatedAt = session.CreatedAt.In(time.UTC)
	session.UpdatedAt = session.UpdatedAt.In(time.UTC)
	return session, nil
}

func (r *pgSessionRepository) FindByReceipt(ctx context.Context, receipt string) (*domain.ParkingSession, error) {
	session := &domain.ParkingSession{}
	query := `SELECT ` + sessionColumns + sessionJoins + ` WHERE s.receipt = $1`
	err := scanSession(r.db.QueryRowContext(ctx, query, receipt), session)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SessionRepository.FindByReceipt: %w", err)
	}
	return session, nil
}

// Close transitions the session from open to closed. The status guard
// in the WHERE clause makes concurrent checkouts of the same receipt
// resolve to exactly one winner.
func (r *pgSessionRepository) Close(ctx context.Context, receipt string, exitTime time.Time, fee float64) (*domain.ParkingSession, error) {
	query := `UPDATE parking_sessions
	           SET exit_time = $1, fee = $2, status = $3, updated_at = CURRENT_TIMESTAMP
	           WHERE receipt = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, exitTime, fee, domain.SessionClosed, receipt, domain.SessionOpen)
	if err != nil {
		return nil, fmt.Errorf("SessionRepository.Close: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("SessionRepository.Close (checking rows affected): %w", err)
	}
	if rowsAffected == 0 {
		existing, err := r.FindByReceipt(ctx, receipt)
		if err != nil {
			return nil, err
		}
		if existing.Status == domain.SessionClosed {
			return nil, fmt.Errorf("%w: receipt '%s'", repository.ErrSessionClosed, receipt)
		}
		return nil, repository.ErrNotFound
	}
	return r.FindByReceipt(ctx, receipt)
}

func (r *pgSessionRepository) ListAll(ctx context.Context, page, size int) (*domain.SessionPage, error) {
	return r.list(ctx, "", page, size)
}

func (r *pgSessionRepository) ListByClientTaxID(ctx context.Context, taxID string, page, size int) (*domain.SessionPage, error) {
	return r.list(ctx, taxID, page, size)
}

func (r *pgSessionRepository) list(ctx context.Context, taxID string, page, size int) (*domain.SessionPage, error) {
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = 20
	}

	countQuery := `SELECT COUNT(*)` + sessionJoins
	listQuery := `SELECT ` + sessionColumns + sessionJoins
	var args []any
	if taxID != "" {
		countQuery += ` WHERE c.tax_id = $1`
		listQuery += ` WHERE c.tax_id = $1 ORDER BY s.entry_time DESC LIMIT $2 OFFSET $3`
		args = []any{taxID, size, page * size}
	} else {
		listQuery += ` ORDER BY s.entry_time DESC LIMIT $1 OFFSET $2`
		args = []any{size, page * size}
	}

	var total int64
	countArgs := args[:len(args)-2]
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("SessionRepository.list (counting): %w", err)
	}

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("SessionRepository.list: %w", err)
	}
	defer rows.Close()

	sessions := []domain.ParkingSession{}
	for rows.Next() {
		var session domain.ParkingSession
		if err := scanSession(rows, &session); err != nil {
			return nil, fmt.Errorf("SessionRepository.list (scanning row): %w", err)
		}
		sessions = append(sessions, session)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SessionRepository.list (rows error): %w", err)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	return &domain.SessionPage{
		Content:       sessions,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
	}, nil
}
