package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"park_api/internal/billing"
	"park_api/internal/domain"
	"park_api/internal/repository"
)

type stubSpotRepo struct {
	mu         sync.Mutex
	spots      []*domain.Spot
	releaseErr error
	released   []int
}

func newStubSpotRepo(codes ...string) *stubSpotRepo {
	r := &stubSpotRepo{}
	for i, code := range codes {
		r.spots = append(r.spots, &domain.Spot{ID: i + 1, Code: code, Status: domain.SpotFree})
	}
	return r
}

func (r *stubSpotRepo) Create(_ context.Context, spot *domain.Spot) (*domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spots {
		if s.Code == spot.Code {
			return nil, repository.ErrDuplicateEntry
		}
	}
	spot.ID = len(r.spots) + 1
	r.spots = append(r.spots, spot)
	return spot, nil
}

func (r *stubSpotRepo) FindByCode(_ context.Context, code string) (*domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spots {
		if s.Code == code {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubSpotRepo) FindAll(_ context.Context) ([]domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Spot, 0, len(r.spots))
	for _, s := range r.spots {
		out = append(out, *s)
	}
	return out, nil
}

func (r *stubSpotRepo) ClaimFirstFree(_ context.Context) (*domain.Spot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var free []*domain.Spot
	for _, s := range r.spots {
		if s.Status == domain.SpotFree {
			free = append(free, s)
		}
	}
	if len(free) == 0 {
		return nil, repository.ErrNoFreeSpot
	}
	sort.Slice(free, func(i, j int) bool { return free[i].Code < free[j].Code })
	free[0].Status = domain.SpotOccupied
	copied := *free[0]
	return &copied, nil
}

func (r *stubSpotRepo) Release(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.releaseErr != nil {
		return r.releaseErr
	}
	for _, s := range r.spots {
		if s.ID == id {
			if s.Status != domain.SpotOccupied {
				return repository.ErrSpotNotOccupied
			}
			s.Status = domain.SpotFree
			r.released = append(r.released, id)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubSpotRepo) statusOf(code string) domain.SpotStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spots {
		if s.Code == code {
			return s.Status
		}
	}
	return ""
}

type stubSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*domain.ParkingSession
	nextID    int
	createErr error
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: map[string]*domain.ParkingSession{}}
}

func (r *stubSessionRepo) Create(_ context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, exists := r.sessions[session.Receipt]; exists {
		return nil, repository.ErrDuplicateEntry
	}
	r.nextID++
	session.ID = r.nextID
	copied := *session
	r.sessions[session.Receipt] = &copied
	result := copied
	return &result, nil
}

func (r *stubSessionRepo) FindByReceipt(_ context.Context, receipt string) (*domain.ParkingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[receipt]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *stubSessionRepo) Close(_ context.Context, receipt string, exitTime time.Time, fee float64) (*domain.ParkingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[receipt]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if session.Status == domain.SessionClosed {
		return nil, repository.ErrSessionClosed
	}
	session.ExitTime.SetValid(exitTime)
	session.Fee.SetValid(fee)
	session.Status = domain.SessionClosed
	copied := *session
	return &copied, nil
}

func (r *stubSessionRepo) ListAll(_ context.Context, page, size int) (*domain.SessionPage, error) {
	return r.list("", page, size)
}

func (r *stubSessionRepo) ListByClientTaxID(_ context.Context, taxID string, page, size int) (*domain.SessionPage, error) {
	return r.list(taxID, page, size)
}

func (r *stubSessionRepo) list(taxID string, page, size int) (*domain.SessionPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.ParkingSession
	for _, s := range r.sessions {
		if taxID == "" || s.ClientTaxID == taxID {
			all = append(all, *s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].EntryTime.After(all[j].EntryTime) })
	return &domain.SessionPage{
		Content:       all,
		Page:          page,
		Size:          size,
		TotalElements: int64(len(all)),
		TotalPages:    (len(all) + size - 1) / size,
	}, nil
}

type stubClientRepo struct {
	clients map[string]*domain.Client
}

func newStubClientRepo(clients ...*domain.Client) *stubClientRepo {
	r := &stubClientRepo{clients: map[string]*domain.Client{}}
	for i, c := range clients {
		c.ID = i + 1
		r.clients[c.TaxID] = c
	}
	return r
}

func (r *stubClientRepo) Create(_ context.Context, client *domain.Client) (*domain.Client, error) {
	if _, exists := r.clients[client.TaxID]; exists {
		return nil, repository.ErrDuplicateEntry
	}
	client.ID = len(r.clients) + 1
	r.clients[client.TaxID] = client
	return client, nil
}

func (r *stubClientRepo) FindByID(_ context.Context, id int) (*domain.Client, error) {
	for _, c := range r.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubClientRepo) FindByTaxID(_ context.Context, taxID string) (*domain.Client, error) {
	client, ok := r.clients[taxID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return client, nil
}

func (r *stubClientRepo) FindAll(_ context.Context, page, size int) (*domain.ClientPage, error) {
	var all []domain.Client
	for _, c := range r.clients {
		all = append(all, *c)
	}
	return &domain.ClientPage{Content: all, Page: page, Size: size, TotalElements: int64(len(all))}, nil
}

func testBillingPolicy() billing.Policy {
	return billing.Policy{GraceMinutes: 15, BaseRate: 5.00, HourlyRate: 9.00}
}

func checkInDTO(taxID string) domain.CheckInDTO {
	return domain.CheckInDTO{
		Plate:       "WSP-4569",
		Brand:       "FIAT",
		Model:       "PALIO 1.0",
		Color:       "RED",
		ClientTaxID: taxID,
	}
}

func newTestService(spots *stubSpotRepo, sessions *stubSessionRepo, clients *stubClientRepo) *ParkingService {
	return NewParkingService(spots, sessions, clients, testBillingPolicy())
}

func TestCheckInClaimsLowestCodeSpotFirst(t *testing.T) {
	spots := newStubSpotRepo("B-02", "A-01", "C-03")
	sessions := newStubSessionRepo()
	clients := newStubClientRepo(&domain.Client{Name: "Ana", TaxID: "38352600060"})
	svc := newTestService(spots, sessions, clients)

	base := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)
	step := 0
	svc.now = func() time.Time { step++; return base.Add(time.Duration(step) * time.Second) }

	want := []string{"A-01", "B-02", "C-03"}
	for i, code := range want {
		session, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
		if err != nil {
			t.Fatalf("check-in %d: %v", i, err)
		}
		if session.SpotCode != code {
			t.Fatalf("check-in %d: expected spot %s, got %s", i, code, session.SpotCode)
		}
		if session.Status != domain.SessionOpen {
			t.Fatalf("check-in %d: expected open session, got %s", i, session.Status)
		}
		if session.ExitTime.Valid || session.Fee.Valid {
			t.Fatalf("check-in %d: open session must not carry exit time or fee", i)
		}
	}

	_, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
	if !errors.Is(err, repository.ErrNoFreeSpot) {
		t.Fatalf("expected ErrNoFreeSpot once the facility is full, got %v", err)
	}
}

func TestCheckInUnknownClientClaimsNothing(t *testing.T) {
	spots := newStubSpotRepo("A-01")
	svc := newTestService(spots, newStubSessionRepo(), newStubClientRepo())

	_, err := svc.CheckIn(context.Background(), checkInDTO("98598204064"))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown client, got %v", err)
	}
	if got := spots.statusOf("A-01"); got != domain.SpotFree {
		t.Fatalf("spot must stay free when the client lookup fails, got %s", got)
	}
}

func TestCheckInReleasesSpotWhenSessionCreateFails(t *testing.T) {
	spots := newStubSpotRepo("A-01")
	sessions := newStubSessionRepo()
	sessions.createErr = errors.New("insert failed")
	clients := newStubClientRepo(&domain.Client{Name: "Ana", TaxID: "38352600060"})
	svc := newTestService(spots, sessions, clients)

	_, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
	if err == nil {
		t.Fatal("expected check-in to fail")
	}
	if got := spots.statusOf("A-01"); got != domain.SpotFree {
		t.Fatalf("claimed spot must be released after a failed check-in, got %s", got)
	}
}

func TestCheckInReceiptFormatAndSameSecondDisambiguation(t *testing.T) {
	spots := newStubSpotRepo("A-01", "A-02")
	sessions := newStubSessionRepo()
	clients := newStubClientRepo(&domain.Client{Name: "Ana", TaxID: "38352600060"})
	svc := newTestService(spots, sessions, clients)

	entry := time.Date(2025, 3, 13, 10, 13, 0, 0, time.UTC)
	svc.now = func() time.Time { return entry }

	first, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
	if err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	if first.Receipt != "20250313-101300" {
		t.Fatalf("expected receipt 20250313-101300, got %s", first.Receipt)
	}

	second, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
	if err != nil {
		t.Fatalf("second check-in in the same second: %v", err)
	}
	if !strings.HasPrefix(second.Receipt, "20250313-101300-") {
		t.Fatalf("expected a disambiguated receipt, got %s", second.Receipt)
	}
	if second.Receipt == first.Receipt {
		t.Fatal("receipts must be unique")
	}
}

func TestCheckOutComputesFeeAndFreesSpot(t *testing.T) {
	spots := newStubSpotRepo("A-01")
	sessions := newStubSessionRepo()
	clients := newStubClientRepo(&domain.Client{Name: "Ana", TaxID: "38352600060"})
	svc := newTestService(spots, sessions, clients)

	entry := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return entry }
	session, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}

	// 1h40m stay: 1h25m beyond grace -> 2 billed hours.
	exit := entry.Add(100 * time.Minute)
	svc.now = func() time.Time { return exit }

	closed, err := svc.CheckOut(context.Background(), session.Receipt)
	if err != nil {
		t.Fatalf("check-out: %v", err)
	}
	if closed.Status != domain.SessionClosed {
		t.Fatalf("expected closed session, got %s", closed.Status)
	}
	if !closed.ExitTime.Valid || !closed.ExitTime.Time.Equal(exit) {
		t.Fatalf("expected exit time %v, got %v", exit, closed.ExitTime)
	}
	if !closed.Fee.Valid || closed.Fee.Float64 != 23.00 {
		t.Fatalf("expected fee 23.00, got %v", closed.Fee)
	}
	if got := spots.statusOf("A-01"); got != domain.SpotFree {
		t.Fatalf("spot must be free after checkout, got %s", got)
	}
}

func TestCheckOutTwiceFailsWithoutAlteringFirstResult(t *testing.T) {
	spots := newStubSpotRepo("A-01")
	sessions := newStubSessionRepo()
	clients := newStubClientRepo(&domain.Client{Name: "Ana", TaxID: "38352600060"})
	svc := newTestService(spots, sessions, clients)

	entry := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return entry }
	session, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}

	svc.now = func() time.Time { return entry.Add(10 * time.Minute) }
	first, err := svc.CheckOut(context.Background(), session.Receipt)
	if err != nil {
		t.Fatalf("first check-out: %v", err)
	}

	svc.now = func() time.Time { return entry.Add(5 * time.Hour) }
	_, err = svc.CheckOut(context.Background(), session.Receipt)
	if !errors.Is(err, repository.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on double checkout, got %v", err)
	}

	stored, err := svc.GetByReceipt(context.Background(), session.Receipt)
	if err != nil {
		t.Fatalf("GetByReceipt: %v", err)
	}
	if stored.Fee.Float64 != first.Fee.Float64 {
		t.Fatalf("second checkout altered the fee: %.2f -> %.2f", first.Fee.Float64, stored.Fee.Float64)
	}
	if got := spots.statusOf("A-01"); got != domain.SpotFree {
		t.Fatalf("spot state changed by rejected checkout, got %s", got)
	}
}

func TestCheckOutUnknownReceipt(t *testing.T) {
	svc := newTestService(newStubSpotRepo(), newStubSessionRepo(), newStubClientRepo())
	_, err := svc.CheckOut(context.Background(), "20250313-101300")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckOutSucceedsWhenSpotReleaseFails(t *testing.T) {
	spots := newStubSpotRepo("A-01")
	sessions := newStubSessionRepo()
	clients := newStubClientRepo(&domain.Client{Name: "Ana", TaxID: "38352600060"})
	svc := newTestService(spots, sessions, clients)

	entry := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return entry }
	session, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}

	spots.releaseErr = errors.New("release failed")
	svc.now = func() time.Time { return entry.Add(time.Hour) }

	closed, err := svc.CheckOut(context.Background(), session.Receipt)
	if err != nil {
		t.Fatalf("checkout must not fail when only the release fails: %v", err)
	}
	if closed.Status != domain.SessionClosed || !closed.Fee.Valid {
		t.Fatal("session must be closed and charged despite the release failure")
	}
}

func TestConcurrentCheckInsClaimEachSpotOnce(t *testing.T) {
	const freeSpots = 5
	const attempts = 20

	spots := newStubSpotRepo("A-01", "A-02", "A-03", "A-04", "A-05")
	sessions := newStubSessionRepo()
	clients := newStubClientRepo(&domain.Client{Name: "Ana", TaxID: "38352600060"})
	svc := newTestService(spots, sessions, clients)

	var wg sync.WaitGroup
	results := make(chan *domain.ParkingSession, attempts)
	failures := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := svc.CheckIn(context.Background(), checkInDTO("38352600060"))
			if err != nil {
				failures <- err
				return
			}
			results <- session
		}()
	}
	wg.Wait()
	close(results)
	close(failures)

	claimed := map[string]bool{}
	for session := range results {
		if claimed[session.SpotCode] {
			t.Fatalf("spot %s was claimed twice", session.SpotCode)
		}
		claimed[session.SpotCode] = true
	}
	if len(claimed) != freeSpots {
		t.Fatalf("expected exactly %d successful check-ins, got %d", freeSpots, len(claimed))
	}

	failureCount := 0
	for err := range failures {
		if !errors.Is(err, repository.ErrNoFreeSpot) {
			t.Fatalf("expected only ErrNoFreeSpot failures, got %v", err)
		}
		failureCount++
	}
	if failureCount != attempts-freeSpots {
		t.Fatalf("expected %d rejections, got %d", attempts-freeSpots, failureCount)
	}
}

func TestListSessionsFiltersByClient(t *testing.T) {
	spots := newStubSpotRepo("A-01", "A-02")
	sessions := newStubSessionRepo()
	clients := newStubClientRepo(
		&domain.Client{Name: "Ana", TaxID: "38352600060"},
		&domain.Client{Name: "Bob", TaxID: "11122233344"},
	)
	svc := newTestService(spots, sessions, clients)

	base := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	if _, err := svc.CheckIn(context.Background(), checkInDTO("38352600060")); err != nil {
		t.Fatalf("check-in: %v", err)
	}
	svc.now = func() time.Time { return base.Add(time.Minute) }
	if _, err := svc.CheckIn(context.Background(), checkInDTO("11122233344")); err != nil {
		t.Fatalf("check-in: %v", err)
	}

	page, err := svc.ListSessions(context.Background(), domain.SessionFilterDTO{ClientTaxID: "38352600060", Size: 10})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if page.TotalElements != 1 || len(page.Content) != 1 {
		t.Fatalf("expected one session for the client, got %d", page.TotalElements)
	}
	if page.Content[0].ClientTaxID != "38352600060" {
		t.Fatalf("unexpected client on filtered page: %s", page.Content[0].ClientTaxID)
	}

	all, err := svc.ListSessions(context.Background(), domain.SessionFilterDTO{Size: 10})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if all.TotalElements != 2 {
		t.Fatalf("expected two sessions in total, got %d", all.TotalElements)
	}
	// Newest entry first.
	if len(all.Content) != 2 || !all.Content[0].EntryTime.After(all.Content[1].EntryTime) {
		t.Fatal("sessions must be ordered by entry time descending")
	}
}
