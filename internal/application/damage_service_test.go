package application

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	damageDomain "github.com/rigshare/service-booking/internal/domain/damage"
	"github.com/rigshare/service-booking/pkg/domain"
)

type damageFixture struct {
	bookings *fakeBookingRepo
	reports  *fakeReportRepo
	notifier *mockNotifier
	svc      *DamageService
}

func newDamageFixture(t *testing.T) *damageFixture {
	t.Helper()
	bookings := newFakeBookingRepo()
	f := &damageFixture{
		bookings: bookings,
		reports:  newFakeReportRepo(bookings),
		notifier: &mockNotifier{},
	}
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil)
	f.svc = NewDamageService(f.reports, f.bookings, f.notifier, testLogger())
	return f
}

func fileReq() FileDamageReportRequest {
	return FileDamageReportRequest{
		Summary:   "Dent in boom arm",
		Severity:  "major",
		PhotoURLs: []string{"https://cdn.example.com/dent.jpg"},
	}
}

func (f *damageFixture) damageStatus(t *testing.T, id uuid.UUID) bookingDomain.DamageStatus {
	t.Helper()
	bk, err := f.bookings.FindByID(context.Background(), id)
	require.NoError(t, err)
	return bk.DamageStatus()
}

func TestFileReport_FlagsBooking(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusAwaitingReturnInspection)

	dto, err := f.svc.FileReport(context.Background(), bk.ID, owner(bk), fileReq())
	require.NoError(t, err)
	assert.Equal(t, string(damageDomain.StatusOpen), dto.Status)
	assert.Equal(t, string(damageDomain.SeverityMajor), dto.Severity)

	assert.Equal(t, bookingDomain.DamagePotentialReported, f.damageStatus(t, bk.ID))
	assert.Equal(t, bookingDomain.StatusAwaitingReturnInspection, f.bookings.status(bk.ID))
	f.notifier.AssertCalled(t, "Send", mock.Anything, notificationTo(bk.RenterID, NotifyDamageReported))
}

func TestFileReport_RejectsBeforeRental(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusAccepted)

	_, err := f.svc.FileReport(context.Background(), bk.ID, renter(bk), fileReq())
	assert.True(t, domain.IsKind(err, domain.KindPreconditionNotMet))
}

func TestFileReport_RejectsStranger(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusInUse)

	_, err := f.svc.FileReport(context.Background(), bk.ID, Actor{ID: uuid.New(), Role: bookingDomain.ActorRenter}, fileReq())
	assert.True(t, domain.IsKind(err, domain.KindUnauthorizedActor))
}

func TestResolveReport_BondCap(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusCompleted)
	ctx := context.Background()

	dto, err := f.svc.FileReport(ctx, bk.ID, owner(bk), fileReq())
	require.NoError(t, err)
	updatesBefore := f.bookings.updates

	over := decimal.RequireFromString("200.01")
	_, err = f.svc.ResolveReport(ctx, dto.ID, admin.ID, ResolveDamageReportRequest{
		Outcome:           string(damageDomain.StatusResolvedPartialBond),
		BondAmountApplied: &over,
	})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindInvariantViolation))

	stored, err := f.reports.FindByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, damageDomain.StatusOpen, stored.Status())
	assert.Nil(t, stored.BondAmountApplied())
	assert.Equal(t, updatesBefore, f.bookings.updates)
	assert.Equal(t, bookingDomain.DamagePotentialReported, f.damageStatus(t, bk.ID))
}

func TestResolveReport_MapsDamageStatus(t *testing.T) {
	partial := decimal.RequireFromString("75")
	cases := []struct {
		outcome damageDomain.ReportStatus
		bond    *decimal.Decimal
		want    bookingDomain.DamageStatus
	}{
		{damageDomain.StatusResolvedNoAction, nil, bookingDomain.DamageResolvedNoCharge},
		{damageDomain.StatusResolvedPartialBond, &partial, bookingDomain.DamageResolvedBondPartial},
		{damageDomain.StatusResolvedFullBond, nil, bookingDomain.DamageResolvedBondFull},
		{damageDomain.StatusEscalated, nil, bookingDomain.DamageConfirmed},
	}
	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			f := newDamageFixture(t)
			bk := f.bookings.seed(bookingDomain.StatusInDispute)
			ctx := context.Background()

			dto, err := f.svc.FileReport(ctx, bk.ID, renter(bk), fileReq())
			require.NoError(t, err)
			_, err = f.svc.StartReview(ctx, dto.ID, admin.ID)
			require.NoError(t, err)

			resolved, err := f.svc.ResolveReport(ctx, dto.ID, admin.ID, ResolveDamageReportRequest{
				Outcome:           string(tc.outcome),
				BondAmountApplied: tc.bond,
			})
			require.NoError(t, err)
			assert.Equal(t, string(tc.outcome), resolved.Status)
			assert.Equal(t, tc.want, f.damageStatus(t, bk.ID))
			assert.Equal(t, bookingDomain.StatusInDispute, f.bookings.status(bk.ID))
		})
	}
}

func TestFileReport_DoesNotDowngradeConfirmedDamage(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusCompleted, func(p *bookingDomain.ReconstructParams) {
		p.DamageStatus = bookingDomain.DamageConfirmed
	})

	_, err := f.svc.FileReport(context.Background(), bk.ID, owner(bk), fileReq())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.DamageConfirmed, f.damageStatus(t, bk.ID))
}

func TestListReports(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusInUse)
	ctx := context.Background()

	_, err := f.svc.FileReport(ctx, bk.ID, owner(bk), fileReq())
	require.NoError(t, err)
	_, err = f.svc.FileReport(ctx, bk.ID, renter(bk), fileReq())
	require.NoError(t, err)

	list, err := f.svc.ListReports(ctx, bk.ID, admin)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.svc.ListReports(ctx, bk.ID, Actor{ID: uuid.New(), Role: bookingDomain.ActorOwner})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestGetReport_PartiesAndAdmin(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusAwaitingReturnInspection)
	ctx := context.Background()

	rep, err := f.svc.FileReport(ctx, bk.ID, owner(bk), fileReq())
	require.NoError(t, err)

	_, err = f.svc.GetReport(ctx, rep.ID, bk.RenterID, false)
	assert.NoError(t, err)
	_, err = f.svc.GetReport(ctx, rep.ID, uuid.New(), true)
	assert.NoError(t, err)
	_, err = f.svc.GetReport(ctx, rep.ID, uuid.New(), false)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestFileReport_BookingWriteFailureStoresNoReport(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusInUse)
	ctx := context.Background()
	f.bookings.updateErr = errors.New("connection reset by peer")

	_, err := f.svc.FileReport(ctx, bk.ID, owner(bk), fileReq())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPersistence))

	reports, err := f.reports.FindByBookingID(ctx, bk.ID)
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Equal(t, bookingDomain.DamageNone, f.damageStatus(t, bk.ID))
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestResolveReport_BookingWriteFailureLeavesReportUnresolved(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusCompleted)
	ctx := context.Background()

	dto, err := f.svc.FileReport(ctx, bk.ID, owner(bk), fileReq())
	require.NoError(t, err)
	_, err = f.svc.StartReview(ctx, dto.ID, admin.ID)
	require.NoError(t, err)

	req := ResolveDamageReportRequest{Outcome: string(damageDomain.StatusResolvedFullBond)}
	f.bookings.updateErr = errors.New("connection reset by peer")
	_, err = f.svc.ResolveReport(ctx, dto.ID, admin.ID, req)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPersistence))

	stored, err := f.reports.FindByID(ctx, dto.ID)
	require.NoError(t, err)
	assert.Equal(t, damageDomain.StatusUnderReview, stored.Status())
	assert.Nil(t, stored.BondAmountApplied())
	assert.Nil(t, stored.ResolvedAt())
	assert.Equal(t, bookingDomain.DamagePotentialReported, f.damageStatus(t, bk.ID))

	f.bookings.updateErr = nil
	resolved, err := f.svc.ResolveReport(ctx, dto.ID, admin.ID, req)
	require.NoError(t, err)
	assert.Equal(t, string(damageDomain.StatusResolvedFullBond), resolved.Status)
	assert.Equal(t, bookingDomain.DamageResolvedBondFull, f.damageStatus(t, bk.ID))
}

func TestResolveReport_OtherReportsHoldDamageStatus(t *testing.T) {
	f := newDamageFixture(t)
	bk := f.bookings.seed(bookingDomain.StatusInDispute)
	ctx := context.Background()

	first, err := f.svc.FileReport(ctx, bk.ID, owner(bk), fileReq())
	require.NoError(t, err)
	second, err := f.svc.FileReport(ctx, bk.ID, renter(bk), fileReq())
	require.NoError(t, err)

	_, err = f.svc.ResolveReport(ctx, first.ID, admin.ID, ResolveDamageReportRequest{
		Outcome: string(damageDomain.StatusResolvedNoAction),
	})
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.DamagePotentialReported, f.damageStatus(t, bk.ID))

	_, err = f.svc.ResolveReport(ctx, second.ID, admin.ID, ResolveDamageReportRequest{
		Outcome: string(damageDomain.StatusEscalated),
	})
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.DamageConfirmed, f.damageStatus(t, bk.ID))

	third, err := f.svc.FileReport(ctx, bk.ID, owner(bk), fileReq())
	require.NoError(t, err)
	_, err = f.svc.ResolveReport(ctx, third.ID, admin.ID, ResolveDamageReportRequest{
		Outcome: string(damageDomain.StatusResolvedNoAction),
	})
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.DamageConfirmed, f.damageStatus(t, bk.ID))

	partial := decimal.RequireFromString("60")
	_, err = f.svc.ResolveReport(ctx, second.ID, admin.ID, ResolveDamageReportRequest{
		Outcome:           string(damageDomain.StatusResolvedPartialBond),
		BondAmountApplied: &partial,
	})
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.DamageResolvedBondPartial, f.damageStatus(t, bk.ID))
}
