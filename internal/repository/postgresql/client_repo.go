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

type pgClientRepository struct {
	db *sql.DB
}

func NewPgClientRepository(db *sql.DB) repository.ClientRepository {
	return &pgClientRepository{db: db}
}

func (r *pgClientRepository) Create(ctx context.Context, client *domain.Client) (*domain.Client, error) {
	query := `INSERT INTO clients (name, tax_id, created_at, updated_at)
	           VALUES ($1, $2, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, client.Name, client.TaxID).
		Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, fmt.Errorf("%w: tax id '%s' is already registered", repository.ErrDuplicateEntry, client.TaxID)
		}
		return nil, fmt.Errorf("ClientRepository.Create: %w", err)
	}
	client.CreatedAt = client.CreatedAt.In(time.UTC)
	client.UpdatedAt = client.UpdatedAt.In(time.UTC)
	return client, nil
}

func (r *pgClientRepository) FindByID(ctx context.Context, id int) (*domain.Client, error) {
	client := &domain.Client{}
	query := `SELECT id, name, tax_id, created_at, updated_at FROM clients WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&client.ID, &client.Name, &client.TaxID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ClientRepository.FindByID: %w", err)
	}
	client.CreatedAt = client.CreatedAt.In(time.UTC)
	client.UpdatedAt = client.UpdatedAt.In(time.UTC)
	return client, nil
}

func (r *pgClientRepository) FindByTaxID(ctx context.Context, taxID string) (*domain.Client, error) {
	client := &domain.Client{}
	query := `SELECT id, name, tax_id, created_at, updated_at FROM clients WHERE tax_id = $1`
	err := r.db.QueryRowContext(ctx, query, taxID).
		Scan(&client.ID, &client.Name, &client.TaxID, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ClientRepository.FindByTaxID: %w", err)
	}
	client.CreatedAt = client.CreatedAt.In(time.UTC)
	client.UpdatedAt = client.UpdatedAt.In(time.UTC)
	return client, nil
}

func (r *pgClientRepository) FindAll(ctx context.Context, page, size int) (*domain.ClientPage, error) {
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = 20
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&total); err != nil {
		return nil, fmt.Errorf("ClientRepository.FindAll (counting): %w", err)
	}

	query := `SELECT id, name, tax_id, created_at, updated_at FROM clients
	           ORDER BY name ASC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("ClientRepository.FindAll: %w", err)
	}
	defer rows.Close()

	clients := []domain.Client{}
	for rows.Next() {
		var client domain.Client
		if err := rows.Scan(&client.ID, &client.Name, &client.TaxID, &client.CreatedAt, &client.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ClientRepository.FindAll (scanning row): %w", err)
		}
		client.CreatedAt = client.CreatedAt.In(time.UTC)
		client.UpdatedAt = client.UpdatedAt.In(time.UTC)
		clients = append(clients, client)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ClientRepository.FindAll (rows error): %w", err)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	return &domain.ClientPage{
		Content:       clients,
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    totalPages,
	}, nil
}
