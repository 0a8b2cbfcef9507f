package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rigshare/service-booking/internal/application"
	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	damageDomain "github.com/rigshare/service-booking/internal/domain/damage"
	listingDomain "github.com/rigshare/service-booking/internal/domain/listing"
	policyDomain "github.com/rigshare/service-booking/internal/domain/policy"
	"github.com/rigshare/service-booking/internal/policycache"
	"github.com/rigshare/service-booking/pkg/auth"
	"github.com/rigshare/service-booking/pkg/domain"
)

// In-memory stores. Bookings are kept as reconstruct params so a rejected
// write never leaks into the stored row.

type memBookings struct {
	mu   sync.Mutex
	rows map[uuid.UUID]bookingDomain.ReconstructParams
}

func paramsOf(bk *bookingDomain.Booking) bookingDomain.ReconstructParams {
	return bookingDomain.ReconstructParams{
		ID: bk.ID(), ListingID: bk.ListingID(), RenterID: bk.RenterID(), OwnerID: bk.OwnerID(),
		StartDate: bk.StartDate(), EndDate: bk.EndDate(), PickedUpAt: bk.PickedUpAt(), ReturnedAt: bk.ReturnedAt(),
		Status: bk.Status(), DamageStatus: bk.DamageStatus(), Fees: bk.Fees(), Insurance: bk.Insurance(), Policy: bk.Policy(),
		EngineHoursAtPickup: bk.EngineHoursAtPickup(), EngineHoursAtReturn: bk.EngineHoursAtReturn(), EngineHoursUsed: bk.EngineHoursUsed(),
		PaymentSucceeded: bk.PaymentSucceeded(), InspectionComplete: bk.InspectionComplete(), StatusReason: bk.StatusReason(),
		Version: bk.Version(), CreatedAt: bk.CreatedAt(), UpdatedAt: bk.UpdatedAt(),
	}
}

func (m *memBookings) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bookingDomain.ReconstructBooking(row), nil
}

func (m *memBookings) list(keep func(bookingDomain.ReconstructParams) bool) ([]*bookingDomain.Booking, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, row := range m.rows {
		if keep(row) {
			out = append(out, bookingDomain.ReconstructBooking(row))
		}
	}
	return out, int64(len(out)), nil
}

func (m *memBookings) FindByRenterID(_ context.Context, id uuid.UUID, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	return m.list(func(p bookingDomain.ReconstructParams) bool { return p.RenterID == id })
}

func (m *memBookings) FindByOwnerID(_ context.Context, id uuid.UUID, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	return m.list(func(p bookingDomain.ReconstructParams) bool { return p.OwnerID == id })
}

func (m *memBookings) ListAll(_ context.Context, _, _ int) ([]*bookingDomain.Booking, int64, error) {
	return m.list(func(bookingDomain.ReconstructParams) bool { return true })
}

func (m *memBookings) CountByStatus(context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{}
	for _, row := range m.rows {
		out[string(row.Status)]++
	}
	return out, nil
}

func (m *memBookings) Save(_ context.Context, bk *bookingDomain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[bk.ID()] = paramsOf(bk)
	return nil
}

func (m *memBookings) Update(_ context.Context, bk *bookingDomain.Booking, expected bookingDomain.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.rows[bk.ID()]
	if row.Version != bk.Version()-1 || row.Status != expected {
		return domain.NewConflictError("booking status changed concurrently; reload and retry")
	}
	m.rows[bk.ID()] = paramsOf(bk)
	return nil
}

type memAudit struct {
	mu     sync.Mutex
	events []bookingDomain.TransitionEvent
}

func (a *memAudit) Record(ctx context.Context, e bookingDomain.TransitionEvent) error { return a.Save(ctx, e) }

func (a *memAudit) Save(_ context.Context, e bookingDomain.TransitionEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *memAudit) FindByBookingID(_ context.Context, id uuid.UUID) ([]bookingDomain.TransitionEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []bookingDomain.TransitionEvent
	for _, e := range a.events {
		if e.BookingID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *memAudit) FindUnpublished(context.Context, int) ([]bookingDomain.TransitionEvent, error) {
	return nil, nil
}

func (a *memAudit) MarkPublished(context.Context, uuid.UUID) error { return nil }

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, application.Notification) error { return nil }

type memListings struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*listingDomain.Listing
}

func (m *memListings) FindByID(_ context.Context, id uuid.UUID) (*listingDomain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.rows[id]; ok {
		return l, nil
	}
	return nil, domain.NewNotFoundError("Listing", id.String())
}

func (m *memListings) FindByOwnerID(_ context.Context, id uuid.UUID) ([]*listingDomain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*listingDomain.Listing
	for _, l := range m.rows {
		if l.OwnerID() == id {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memListings) Save(_ context.Context, l *listingDomain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[l.ID()] = l
	return nil
}

func (m *memListings) Update(ctx context.Context, l *listingDomain.Listing) error { return m.Save(ctx, l) }

type memPolicies struct {
	mu       sync.Mutex
	versions []*policyDomain.Version
}

func (m *memPolicies) FindActive(_ context.Context, slug string) (*policyDomain.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions {
		if v.Slug == slug && v.Published {
			return v, nil
		}
	}
	return nil, domain.NewNotFoundError("Policy", slug)
}

func (m *memPolicies) Publish(_ context.Context, v *policyDomain.Version) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, old := range m.versions {
		old.Published = false
	}
	m.versions = append(m.versions, v)
	return nil
}

func (m *memPolicies) ListVersions(_ context.Context, _ string) ([]*policyDomain.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*policyDomain.Version(nil), m.versions...), nil
}

type memReports struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]*damageDomain.Report
	bookings *memBookings
}

func (m *memReports) Save(ctx context.Context, r *damageDomain.Report, bw *damageDomain.BookingWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bw != nil {
		if err := m.bookings.Update(ctx, bw.Booking, bw.ExpectedStatus); err != nil {
			return err
		}
	}
	m.rows[r.ID()] = r
	return nil
}

func (m *memReports) Update(ctx context.Context, r *damageDomain.Report, bw *damageDomain.BookingWrite) error {
	return m.Save(ctx, r, bw)
}

func (m *memReports) FindByID(_ context.Context, id uuid.UUID) (*damageDomain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		return r, nil
	}
	return nil, domain.NewNotFoundError("DamageReport", id.String())
}

func (m *memReports) FindByBookingID(_ context.Context, id uuid.UUID) ([]*damageDomain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*damageDomain.Report
	for _, r := range m.rows {
		if r.BookingID() == id {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- test server ---

type testServer struct {
	router *gin.Engine
	jwt    *auth.JWTManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	bookings := &memBookings{rows: map[uuid.UUID]bookingDomain.ReconstructParams{}}
	audit := &memAudit{}
	listings := &memListings{rows: map[uuid.UUID]*listingDomain.Listing{}}
	policies := &memPolicies{}
	reports := &memReports{rows: map[uuid.UUID]*damageDomain.Report{}, bookings: bookings}

	fees, err := bookingDomain.NewFeeCalculator(bookingDomain.DefaultPlatformFeeRate)
	require.NoError(t, err)
	insurance := application.NewInsuranceService(policies, policycache.New(policies, time.Minute), policyDomain.DefaultSlug, log)
	bookingSvc := application.NewBookingService(bookings, audit, listings, insurance, fees, audit, nopNotifier{}, log)
	lifecycle := application.NewLifecycleService(bookings, audit, nopNotifier{}, log)
	damage := application.NewDamageService(reports, bookings, nopNotifier{}, log)
	listingSvc := application.NewListingService(listings, log)

	jwt := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour, time.Hour)
	router := gin.New()
	NewBookingHandler(bookingSvc, lifecycle).RegisterRoutes(&router.RouterGroup, jwt)
	NewDamageHandler(damage, lifecycle).RegisterRoutes(&router.RouterGroup, jwt)
	NewListingHandler(listingSvc, insurance).RegisterRoutes(&router.RouterGroup, jwt)
	NewAdminBookingHandler(bookingSvc, lifecycle, damage, insurance).RegisterRoutes(&router.RouterGroup, jwt)

	return &testServer{router: router, jwt: jwt}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

func (s *testServer) do(t *testing.T, method, path string, userID uuid.UUID, role auth.Role, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	return s.doRaw(t, method, path, userID, role, buf.String())
}

func (s *testServer) doRaw(t *testing.T, method, path string, userID uuid.UUID, role auth.Role, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		token, err := s.jwt.GenerateAccessToken(userID, role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

type parties struct {
	admin, owner, renter uuid.UUID
}

// createPendingBooking publishes a policy, lists an item and books it.
func (s *testServer) createPendingBooking(t *testing.T) (application.BookingDTO, parties) {
	t.Helper()
	p := parties{admin: uuid.New(), owner: uuid.New(), renter: uuid.New()}

	code, _ := s.do(t, http.MethodPost, "/api/v1/admin/policies", p.admin, auth.RoleAdmin,
		map[string]string{"title": "Insurance & Damage", "content": "v1"})
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/listings", p.owner, auth.RoleMember, map[string]interface{}{
		"title":        "Tipper truck",
		"daily_rate":   "300",
		"delivery_fee": "40",
		"bond_amount":  "500",
		"insurance":    map[string]string{"mode": "OWNER_POLICY"},
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var listing application.ListingDTO
	require.NoError(t, json.Unmarshal(env.Data, &listing))

	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	code, env = s.do(t, http.MethodPost, "/api/v1/bookings", p.renter, auth.RoleMember, map[string]interface{}{
		"listing_id":                     listing.ID,
		"start_date":                     start,
		"end_date":                       start.Add(24 * time.Hour),
		"accepted_policy_version":        1,
		"owner_terms_accepted":           true,
		"renter_responsibility_accepted": true,
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var bk application.BookingDTO
	require.NoError(t, json.Unmarshal(env.Data, &bk))
	return bk, p
}

func TestBookingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	bk, p := s.createPendingBooking(t)
	adminID, ownerID, renterID := p.admin, p.owner, p.renter
	assert.Equal(t, "PENDING", bk.Status)
	base := "/api/v1/bookings/" + bk.ID.String()

	// The renter cannot accept their own request.
	code, env := s.do(t, http.MethodPost, base+"/accept", renterID, auth.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, string(domain.KindUnauthorizedActor), env.Kind)
	assert.Contains(t, env.Error, "allowed actors: OWNER, ADMIN")

	code, env = s.doRaw(t, http.MethodPost, base+"/accept", ownerID, auth.RoleMember, "")
	assert.Equal(t, http.StatusOK, code, env.Error)

	// Release for pickup is for the payment system or an admin.
	code, env = s.do(t, http.MethodPost, base+"/ready", ownerID, auth.RoleMember, map[string]bool{"payment_complete": true})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, string(domain.KindUnauthorizedActor), env.Kind)

	code, env = s.do(t, http.MethodPost, base+"/ready", adminID, auth.RoleAdmin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(domain.KindPreconditionNotMet), env.Kind)

	code, _ = s.do(t, http.MethodPost, base+"/ready", adminID, auth.RoleAdmin, map[string]bool{"payment_complete": true})
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, base+"/pickup", ownerID, auth.RoleMember, map[string]string{"engine_hours": "1200"})
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, base+"/return", renterID, auth.RoleMember, map[string]string{"engine_hours": "1210.5"})
	assert.Equal(t, http.StatusOK, code)

	code, env = s.do(t, http.MethodPost, base+"/complete", ownerID, auth.RoleMember, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, string(domain.KindPreconditionNotMet), env.Kind)

	code, _ = s.do(t, http.MethodPost, base+"/inspection", ownerID, auth.RoleMember, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, base+"/complete", ownerID, auth.RoleMember, nil)
	assert.Equal(t, http.StatusOK, code)

	// Terminal bookings reject every action.
	code, env = s.do(t, http.MethodPost, base+"/dispute", renterID, auth.RoleMember, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, string(domain.KindTerminalState), env.Kind)

	code, env = s.do(t, http.MethodGet, base, renterID, auth.RoleMember, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &bk))
	assert.Equal(t, "COMPLETED", bk.Status)
	require.NotNil(t, bk.EngineHoursUsed)
	assert.Equal(t, "10.5", bk.EngineHoursUsed.String())

	code, env = s.do(t, http.MethodGet, base+"/audit", renterID, auth.RoleMember, nil)
	require.Equal(t, http.StatusOK, code)
	var trail []application.AuditEventDTO
	require.NoError(t, json.Unmarshal(env.Data, &trail))
	assert.Len(t, trail, 6)

	code, _ = s.do(t, http.MethodGet, base, uuid.New(), auth.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAccessControl(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/bookings", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/admin/stats/bookings", uuid.New(), auth.RoleMember, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/bookings/not-a-uuid", uuid.New(), auth.RoleMember, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env := s.do(t, http.MethodPost, "/api/v1/bookings/"+uuid.NewString()+"/accept", uuid.New(), auth.RoleMember, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, string(domain.KindNotFound), env.Kind)
}

func TestMalformedOptionalBodyIsRejected(t *testing.T) {
	s := newTestServer(t)
	bk, p := s.createPendingBooking(t)
	base := "/api/v1/bookings/" + bk.ID.String()

	cases := []struct {
		path string
		user uuid.UUID
		role auth.Role
	}{
		{base + "/decline", p.owner, auth.RoleMember},
		{base + "/cancel", p.renter, auth.RoleMember},
		{base + "/ready", p.admin, auth.RoleAdmin},
		{base + "/dispute", p.renter, auth.RoleMember},
		{"/api/v1/admin/bookings/" + bk.ID.String() + "/return-to-inspection", p.admin, auth.RoleAdmin},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			code, env := s.doRaw(t, http.MethodPost, tc.path, tc.user, tc.role, `{"reason": "damaged",`)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, env.Success)
		})
	}

	code, env := s.do(t, http.MethodGet, base, p.renter, auth.RoleMember, nil)
	require.Equal(t, http.StatusOK, code)
	var current application.BookingDTO
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, "PENDING", current.Status)

	code, env = s.doRaw(t, http.MethodPost, base+"/decline", p.owner, auth.RoleMember, `{"reason": "booked out"}`)
	assert.Equal(t, http.StatusOK, code, env.Error)
}
