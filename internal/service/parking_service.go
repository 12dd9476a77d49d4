package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"park_api/internal/billing"
	"park_api/internal/domain"
	"park_api/internal/repository"
)

const receiptTimeLayout = "20060102-150405"

// receiptCreateAttempts bounds same-second receipt collisions; after
// the bare timestamp, retries carry a random suffix.
const receiptCreateAttempts = 3

// ParkingService coordinates spot allocation, the session ledger and
// fee computation for check-in/check-out.
type ParkingService struct {
	spotRepo    repository.SpotRepository
	sessionRepo repository.SessionRepository
	clientRepo  repository.ClientRepository
	policy      billing.Policy

	now func() time.Time
}

func NewParkingService(
	spotRepo repository.SpotRepository,
	sessionRepo repository.SessionRepository,
	clientRepo repository.ClientRepository,
	policy billing.Policy,
) *ParkingService {
	return &ParkingService{
		spotRepo:    spotRepo,
		sessionRepo: sessionRepo,
		clientRepo:  clientRepo,
		policy:      policy,
		now:         time.Now,
	}
}

// CheckIn claims the first free spot for the vehicle and opens a
// session bound to it. If the session cannot be created the claimed
// spot is released again so it never leaks as occupied.
func (s *ParkingService) CheckIn(ctx context.Context, dto domain.CheckInDTO) (*domain.ParkingSession, error) {
	client, err := s.clientRepo.FindByTaxID(ctx, dto.ClientTaxID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: client with tax id '%s'", repository.ErrNotFound, dto.ClientTaxID)
		}
		return nil, fmt.Errorf("resolving client: %w", err)
	}

	spot, err := s.spotRepo.ClaimFirstFree(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNoFreeSpot) {
			return nil, err
		}
		return nil, fmt.Errorf("claiming spot: %w", err)
	}

	entryTime := s.now().UTC()
	session, err := s.createWithReceipt(ctx, &domain.ParkingSession{
		Plate:       dto.Plate,
		Brand:       dto.Brand,
		Model:       dto.Model,
		Color:       dto.Color,
		ClientID:    client.ID,
		SpotID:      spot.ID,
		EntryTime:   entryTime,
		Status:      domain.SessionOpen,
		ClientTaxID: client.TaxID,
		SpotCode:    spot.Code,
	})
	if err != nil {
		// Compensate: the spot was claimed but no session references it.
		if relErr := s.spotRepo.Release(ctx, spot.ID); relErr != nil {
			log.Error().Err(relErr).Str("spot_code", spot.Code).
				Msg("failed to release spot after aborted check-in, spot may leak as occupied")
		}
		return nil, err
	}

	log.Info().Str("receipt", session.Receipt).Str("plate", session.Plate).
		Str("spot_code", spot.Code).Msg("vehicle checked in")
	return session, nil
}

// createWithReceipt inserts the session under a timestamp-derived
// receipt. Concurrent check-ins within the same second collide on the
// receipt's unique constraint and retry with a random suffix.
func (s *ParkingService) createWithReceipt(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	base := session.EntryTime.Format(receiptTimeLayout)
	for attempt := 0; attempt < receiptCreateAttempts; attempt++ {
		if attempt == 0 {
			session.Receipt = base
		} else {
			session.Receipt = base + "-" + uuid.NewString()[:6]
		}
		created, err := s.sessionRepo.Create(ctx, session)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, fmt.Errorf("opening session: %w", err)
		}
	}
	return nil, fmt.Errorf("opening session: %w: could not issue a unique receipt", repository.ErrDuplicateEntry)
}

// CheckOut closes the open session identified by receipt, charging the
// fee computed for now() as the exit time, and releases the bound
// spot. A release failure after the close committed does not fail the
// checkout; it is logged for reconciliation.
func (s *ParkingService) CheckOut(ctx context.Context, receipt string) (*domain.ParkingSession, error) {
	session, err := s.sessionRepo.FindByReceipt(ctx, receipt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: session with receipt '%s'", repository.ErrNotFound, receipt)
		}
		return nil, fmt.Errorf("finding session: %w", err)
	}
	if session.Status == domain.SessionClosed {
		return nil, fmt.Errorf("%w: receipt '%s'", repository.ErrSessionClosed, receipt)
	}

	exitTime := s.now().UTC()
	fee, err := s.policy.ComputeFee(session.EntryTime, exitTime)
	if err != nil {
		return nil, fmt.Errorf("computing fee: %w", err)
	}

	closed, err := s.sessionRepo.Close(ctx, receipt, exitTime, fee)
	if err != nil {
		// A concurrent checkout may have won the close.
		if errors.Is(err, repository.ErrSessionClosed) || errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("closing session: %w", err)
	}

	if err := s.spotRepo.Release(ctx, closed.SpotID); err != nil {
		// The charge is committed; a stuck spot is an operational
		// follow-up, not a request failure.
		log.Error().Err(err).Str("receipt", receipt).Int("spot_id", closed.SpotID).
			Msg("spot release failed after checkout, occupancy needs reconciliation")
	}

	log.Info().Str("receipt", receipt).Float64("fee", fee).Msg("vehicle checked out")
	return closed, nil
}

func (s *ParkingService) GetByReceipt(ctx context.Context, receipt string) (*domain.ParkingSession, error) {
	return s.sessionRepo.FindByReceipt(ctx, receipt)
}

func (s *ParkingService) ListSessions(ctx context.Context, filter domain.SessionFilterDTO) (*domain.SessionPage, error) {
	if filter.ClientTaxID != "" {
		return s.sessionRepo.ListByClientTaxID(ctx, filter.ClientTaxID, filter.Page, filter.Size)
	}
	return s.sessionRepo.ListAll(ctx, filter.Page, filter.Size)
}

// RegisterSpot adds a spot to the facility, free by default.
func (s *ParkingService) RegisterSpot(ctx context.Context, dto domain.SpotCreateDTO) (*domain.Spot, error) {
	return s.spotRepo.Create(ctx, &domain.Spot{Code: dto.Code, Status: domain.SpotFree})
}

func (s *ParkingService) GetSpotByCode(ctx context.Context, code string) (*domain.Spot, error) {
	return s.spotRepo.FindByCode(ctx, code)
}

func (s *ParkingService) ListSpots(ctx context.Context) ([]domain.Spot, error) {
	return s.spotRepo.FindAll(ctx)
}
