package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	damageDomain "github.com/rigshare/service-booking/internal/domain/damage"
	listingDomain "github.com/rigshare/service-booking/internal/domain/listing"
	policyDomain "github.com/rigshare/service-booking/internal/domain/policy"
	"github.com/rigshare/service-booking/pkg/domain"
)

// --- bookings ---

type fakeBookingRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]bookingDomain.ReconstructParams
	updateErr error
	updates   int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{rows: map[uuid.UUID]bookingDomain.ReconstructParams{}}
}

func snapshotOf(bk *bookingDomain.Booking) bookingDomain.ReconstructParams {
	return bookingDomain.ReconstructParams{
		ID: bk.ID(), ListingID: bk.ListingID(), RenterID: bk.RenterID(), OwnerID: bk.OwnerID(),
		StartDate: bk.StartDate(), EndDate: bk.EndDate(), PickedUpAt: bk.PickedUpAt(), ReturnedAt: bk.ReturnedAt(),
		Status: bk.Status(), DamageStatus: bk.DamageStatus(), Fees: bk.Fees(), Insurance: bk.Insurance(), Policy: bk.Policy(),
		EngineHoursAtPickup: bk.EngineHoursAtPickup(), EngineHoursAtReturn: bk.EngineHoursAtReturn(), EngineHoursUsed: bk.EngineHoursUsed(),
		PaymentSucceeded: bk.PaymentSucceeded(), InspectionComplete: bk.InspectionComplete(), StatusReason: bk.StatusReason(),
		Version: bk.Version(), CreatedAt: bk.CreatedAt(), UpdatedAt: bk.UpdatedAt(),
	}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bookingDomain.ReconstructBooking(row), nil
}

func (r *fakeBookingRepo) filter(keep func(bookingDomain.ReconstructParams) bool) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, row := range r.rows {
		if keep(row) {
			out = append(out, bookingDomain.ReconstructBooking(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindByRenterID(_ context.Context, renterID uuid.UUID, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(row bookingDomain.ReconstructParams) bool { return row.RenterID == renterID })
}

func (r *fakeBookingRepo) FindByOwnerID(_ context.Context, ownerID uuid.UUID, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(row bookingDomain.ReconstructParams) bool { return row.OwnerID == ownerID })
}

func (r *fakeBookingRepo) ListAll(_ context.Context, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(bookingDomain.ReconstructParams) bool { return true })
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int64{}
	for _, row := range r.rows {
		counts[string(row.Status)]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[bk.ID()] = snapshotOf(bk)
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking, expected bookingDomain.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	row, ok := r.rows[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if row.Version != bk.Version()-1 || row.Status != expected {
		return domain.NewConflictError("booking status changed concurrently; reload and retry")
	}
	r.rows[bk.ID()] = snapshotOf(bk)
	r.updates++
	return nil
}

func (r *fakeBookingRepo) status(id uuid.UUID) bookingDomain.BookingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Status
}

// seed stores a booking directly in the given status.
func (r *fakeBookingRepo) seed(status bookingDomain.BookingStatus, mutate ...func(p *bookingDomain.ReconstructParams)) bookingDomain.ReconstructParams {
	now := time.Now().UTC()
	p := bookingDomain.ReconstructParams{
		ID:           uuid.New(),
		ListingID:    uuid.New(),
		RenterID:     uuid.New(),
		OwnerID:      uuid.New(),
		StartDate:    now.Add(24 * time.Hour),
		EndDate:      now.Add(72 * time.Hour),
		Status:       status,
		DamageStatus: bookingDomain.DamageNone,
		Fees:         bookingDomain.FeeBreakdown{BondAmount: decimal.RequireFromString("200")},
		Policy:       bookingDomain.PolicySnapshot{VersionAccepted: 1, OwnerTermsAccepted: true, RenterResponsibilityAccepted: true},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, m := range mutate {
		m(&p)
	}
	r.mu.Lock()
	r.rows[p.ID] = p
	r.mu.Unlock()
	return p
}

// --- audit ---

type fakeAudit struct {
	mu     sync.Mutex
	events []bookingDomain.TransitionEvent
	err    error
}

func (a *fakeAudit) Record(_ context.Context, e bookingDomain.TransitionEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, e)
	return nil
}

func (a *fakeAudit) Save(ctx context.Context, e bookingDomain.TransitionEvent) error {
	return a.Record(ctx, e)
}

func (a *fakeAudit) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]bookingDomain.TransitionEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []bookingDomain.TransitionEvent
	for _, e := range a.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *fakeAudit) FindUnpublished(_ context.Context, _ int) ([]bookingDomain.TransitionEvent, error) {
	return nil, nil
}

func (a *fakeAudit) MarkPublished(_ context.Context, _ uuid.UUID) error { return nil }

func (a *fakeAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// --- notifications ---

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func notificationTo(userID uuid.UUID, kind NotificationType) interface{} {
	return mock.MatchedBy(func(n Notification) bool { return n.UserID == userID && n.Type == kind })
}

// --- listings ---

type fakeListingRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*listingDomain.Listing
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{rows: map[uuid.UUID]*listingDomain.Listing{}}
}

func (r *fakeListingRepo) FindByID(_ context.Context, id uuid.UUID) (*listingDomain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("Listing", id.String())
	}
	return l, nil
}

func (r *fakeListingRepo) FindByOwnerID(_ context.Context, ownerID uuid.UUID) ([]*listingDomain.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*listingDomain.Listing
	for _, l := range r.rows {
		if l.OwnerID() == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeListingRepo) Save(_ context.Context, l *listingDomain.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[l.ID()] = l
	return nil
}

func (r *fakeListingRepo) Update(ctx context.Context, l *listingDomain.Listing) error {
	return r.Save(ctx, l)
}

// --- policies ---

type fakePolicyRepo struct {
	mu       sync.Mutex
	versions []*policyDomain.Version
}

func (r *fakePolicyRepo) FindActive(_ context.Context, slug string) (*policyDomain.Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions {
		if v.Slug == slug && v.Published {
			return v, nil
		}
	}
	return nil, domain.NewNotFoundError("Policy", slug)
}

func (r *fakePolicyRepo) Publish(_ context.Context, next *policyDomain.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions {
		if v.Slug == next.Slug {
			v.Published = false
		}
	}
	r.versions = append(r.versions, next)
	return nil
}

func (r *fakePolicyRepo) ListVersions(_ context.Context, slug string) ([]*policyDomain.Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*policyDomain.Version
	for i := len(r.versions) - 1; i >= 0; i-- {
		if r.versions[i].Slug == slug {
			out = append(out, r.versions[i])
		}
	}
	return out, nil
}

// --- damage reports ---

type fakeReportRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]damageDomain.Report
	bookings *fakeBookingRepo
}

func newFakeReportRepo(bookings *fakeBookingRepo) *fakeReportRepo {
	return &fakeReportRepo{rows: map[uuid.UUID]damageDomain.Report{}, bookings: bookings}
}

// Save mirrors the transactional write: the report is only stored when the
// booking write succeeds.
func (r *fakeReportRepo) Save(ctx context.Context, rep *damageDomain.Report, bw *damageDomain.BookingWrite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bw != nil {
		if err := r.bookings.Update(ctx, bw.Booking, bw.ExpectedStatus); err != nil {
			return err
		}
	}
	r.rows[rep.ID()] = *rep
	return nil
}

func (r *fakeReportRepo) Update(ctx context.Context, rep *damageDomain.Report, bw *damageDomain.BookingWrite) error {
	return r.Save(ctx, rep, bw)
}

func (r *fakeReportRepo) FindByID(_ context.Context, id uuid.UUID) (*damageDomain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("DamageReport", id.String())
	}
	return &rep, nil
}

func (r *fakeReportRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*damageDomain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*damageDomain.Report
	for _, rep := range r.rows {
		if rep.BookingID() == bookingID {
			rep := rep
			out = append(out, &rep)
		}
	}
	return out, nil
}

func testLogger() *zap.Logger { return zap.NewNop() }
