package repository

import (
	"context"
	"errors"
	"time"

	"park_api/internal/domain"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEntry = errors.New("record already exists")

	// ErrNoFreeSpot means every spot is occupied; the check-in must be
	// rejected, not queued.
	ErrNoFreeSpot = errors.New("no free parking spot available")

	// ErrSessionClosed guards against double checkout: the session
	// exists but was already closed.
	ErrSessionClosed = errors.New("parking session already closed")

	// ErrSpotNotOccupied signals a release on a spot that is already
	// free. Coordinator discipline should make this unreachable.
	ErrSpotNotOccupied = errors.New("parking spot is not occupied")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
}

type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) (*domain.Client, error)
	FindByID(ctx context.Context, id int) (*domain.Client, error)
	FindByTaxID(ctx context.Context, taxID string) (*domain.Client, error)
	FindAll(ctx context.Context, page, size int) (*domain.ClientPage, error)
}

type SpotRepository interface {
	Create(ctx context.Context, spot *domain.Spot) (*domain.Spot, error)
	FindByCode(ctx context.Context, code string) (*domain.Spot, error)
	FindAll(ctx context.Context) ([]domain.Spot, error)
	// ClaimFirstFree atomically selects the free spot with the lowest
	// code, marks it occupied and returns it. Two concurrent claims
	// never return the same spot. ErrNoFreeSpot when none is free.
	ClaimFirstFree(ctx context.Context) (*domain.Spot, error)
	// Release marks an occupied spot free. ErrNotFound for an unknown
	// id, ErrSpotNotOccupied if the spot is already free.
	Release(ctx context.Context, id int) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error)
	FindByReceipt(ctx context.Context, receipt string) (*domain.ParkingSession, error)
	// Close sets exit time and fee on the open session with the given
	// receipt. ErrNotFound if no session has the receipt,
	// ErrSessionClosed if it exists but is no longer open.
	Close(ctx context.Context, receipt string, exitTime time.Time, fee float64) (*domain.ParkingSession, error)
	ListAll(ctx context.Context, page, size int) (*domain.SessionPage, error)
	ListByClientTaxID(ctx context.Context, taxID string, page, size int) (*domain.SessionPage, error)
}
