// Package damage models damage reports filed against a booking and their
// review workflow, which runs alongside the booking state machine.
package damage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rigshare/service-booking/internal/domain/booking"
	"github.com/rigshare/service-booking/pkg/domain"
)

// Severity is the reporter's assessment. Severities are ordered.
type Severity string

const (
	SeverityMinor     Severity = "MINOR"
	SeverityModerate  Severity = "MODERATE"
	SeverityMajor     Severity = "MAJOR"
	SeverityTotalLoss Severity = "TOTAL_LOSS"
)

var severityRank = map[Severity]int{
	SeverityMinor:     1,
	SeverityModerate:  2,
	SeverityMajor:     3,
	SeverityTotalLoss: 4,
}

// IsValid returns true if the severity is recognized.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// Less reports whether s is less severe than other.
func (s Severity) Less(other Severity) bool {
	return severityRank[s] < severityRank[other]
}

// ParseSeverity accepts any casing of a known severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid damage severity: %s", s)
	}
	return sev, nil
}

// ReportStatus is the review state of a damage report.
type ReportStatus string

const (
	StatusOpen                ReportStatus = "OPEN"
	StatusUnderReview         ReportStatus = "UNDER_REVIEW"
	StatusResolvedNoAction    ReportStatus = "RESOLVED_NO_ACTION"
	StatusResolvedPartialBond ReportStatus = "RESOLVED_PARTIAL_BOND"
	StatusResolvedFullBond    ReportStatus = "RESOLVED_FULL_BOND"
	StatusEscalated           ReportStatus = "ESCALATED"
)

var resolutions = []ReportStatus{StatusResolvedNoAction, StatusResolvedPartialBond, StatusResolvedFullBond, StatusEscalated}

var reportTransitions = map[ReportStatus][]ReportStatus{
	StatusOpen:                append([]ReportStatus{StatusUnderReview}, resolutions...),
	StatusUnderReview:         resolutions,
	StatusEscalated:           {StatusUnderReview, StatusResolvedNoAction, StatusResolvedPartialBond, StatusResolvedFullBond},
	StatusResolvedNoAction:    {},
	StatusResolvedPartialBond: {},
	StatusResolvedFullBond:    {},
}

// IsValid returns true if the status is recognized.
func (s ReportStatus) IsValid() bool {
	_, ok := reportTransitions[s]
	return ok
}

// IsTerminal returns true for the three resolved statuses.
func (s ReportStatus) IsTerminal() bool {
	return s.IsValid() && len(reportTransitions[s]) == 0
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s ReportStatus) CanTransitionTo(target ReportStatus) bool {
	for _, t := range reportTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsResolution reports whether s is an outcome an admin can resolve to.
func (s ReportStatus) IsResolution() bool {
	for _, r := range resolutions {
		if r == s {
			return true
		}
	}
	return false
}

// ParseReportStatus converts a string to a ReportStatus.
func ParseReportStatus(s string) (ReportStatus, error) {
	st := ReportStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("invalid damage report status: %s", s)
	}
	return st, nil
}

// BookingDamageStatusFor maps a resolution outcome to the booking's damage status.
func BookingDamageStatusFor(outcome ReportStatus) (booking.DamageStatus, bool) {
	switch outcome {
	case StatusResolvedNoAction:
		return booking.DamageResolvedNoCharge, true
	case StatusResolvedPartialBond:
		return booking.DamageResolvedBondPartial, true
	case StatusResolvedFullBond:
		return booking.DamageResolvedBondFull, true
	case StatusEscalated:
		return booking.DamageConfirmed, true
	}
	return "", false
}

// BookingDamageStatusAfter returns the booking damage status once resolved
// has reached its decision, taking the booking's other reports into account.
// An escalated report keeps the booking at CONFIRMED_DAMAGE and a report
// still open or under review keeps it at POTENTIAL_DAMAGE_REPORTED; only
// when no other report is pending does the resolution's own mapping apply.
func BookingDamageStatusAfter(resolved *Report, all []*Report) booking.DamageStatus {
	own, _ := BookingDamageStatusFor(resolved.Status())
	if resolved.Status() == StatusEscalated {
		return own
	}

	pending := false
	for _, other := range all {
		if other.ID() == resolved.ID() {
			continue
		}
		switch other.Status() {
		case StatusEscalated:
			return booking.DamageConfirmed
		case StatusOpen, StatusUnderReview:
			pending = true
		}
	}
	if pending {
		return booking.DamagePotentialReported
	}
	return own
}

// Report is the aggregate root for a damage report.
type Report struct {
	id                  uuid.UUID
	bookingID           uuid.UUID
	reporterID          uuid.UUID
	reporterRole        booking.ActorRole
	summary             string
	description         string
	severity            Severity
	status              ReportStatus
	photoURLs           []string
	estimatedRepairCost *decimal.Decimal
	bondAmountApplied   *decimal.Decimal
	resolutionNotes     string
	reviewerID          *uuid.UUID
	createdAt           time.Time
	reviewedAt          *time.Time
	resolvedAt          *time.Time
	updatedAt           time.Time
}

// NewReportParams holds the inputs of NewReport.
type NewReportParams struct {
	BookingID           uuid.UUID
	ReporterID          uuid.UUID
	ReporterRole        booking.ActorRole
	Summary             string
	Description         string
	Severity            Severity
	PhotoURLs           []string
	EstimatedRepairCost *decimal.Decimal
}

// NewReport creates an OPEN damage report.
func NewReport(p NewReportParams) (*Report, error) {
	if p.BookingID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	switch p.ReporterRole {
	case booking.ActorOwner, booking.ActorRenter, booking.ActorAdmin:
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("damage reports cannot be filed by %s", p.ReporterRole))
	}
	if strings.TrimSpace(p.Summary) == "" {
		return nil, domain.NewValidationError("damage summary is required")
	}
	if !p.Severity.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid damage severity: %s", p.Severity))
	}
	if p.EstimatedRepairCost != nil && p.EstimatedRepairCost.IsNegative() {
		return nil, domain.NewValidationError("estimated repair cost must not be negative")
	}

	photos := make([]string, 0, len(p.PhotoURLs))
	for _, u := range p.PhotoURLs {
		if u = strings.TrimSpace(u); u != "" {
			photos = append(photos, u)
		}
	}

	now := time.Now().UTC()
	return &Report{
		id:                  uuid.New(),
		bookingID:           p.BookingID,
		reporterID:          p.ReporterID,
		reporterRole:        p.ReporterRole,
		summary:             strings.TrimSpace(p.Summary),
		description:         p.Description,
		severity:            p.Severity,
		status:              StatusOpen,
		photoURLs:           photos,
		estimatedRepairCost: p.EstimatedRepairCost,
		createdAt:           now,
		updatedAt:           now,
	}, nil
}

// ReconstructParams mirrors every persisted field of a Report.
type ReconstructParams struct {
	ID                  uuid.UUID
	BookingID           uuid.UUID
	ReporterID          uuid.UUID
	ReporterRole        booking.ActorRole
	Summary             string
	Description         string
	Severity            Severity
	Status              ReportStatus
	PhotoURLs           []string
	EstimatedRepairCost *decimal.Decimal
	BondAmountApplied   *decimal.Decimal
	ResolutionNotes     string
	ReviewerID          *uuid.UUID
	CreatedAt           time.Time
	ReviewedAt          *time.Time
	ResolvedAt          *time.Time
	UpdatedAt           time.Time
}

// Reconstruct rebuilds a Report from persistence.
func Reconstruct(p ReconstructParams) *Report {
	return &Report{
		id:                  p.ID,
		bookingID:           p.BookingID,
		reporterID:          p.ReporterID,
		reporterRole:        p.ReporterRole,
		summary:             p.Summary,
		description:         p.Description,
		severity:            p.Severity,
		status:              p.Status,
		photoURLs:           p.PhotoURLs,
		estimatedRepairCost: p.EstimatedRepairCost,
		bondAmountApplied:   p.BondAmountApplied,
		resolutionNotes:     p.ResolutionNotes,
		reviewerID:          p.ReviewerID,
		createdAt:           p.CreatedAt,
		reviewedAt:          p.ReviewedAt,
		resolvedAt:          p.ResolvedAt,
		updatedAt:           p.UpdatedAt,
	}
}

// Getters.
func (r *Report) ID() uuid.UUID                         { return r.id }
func (r *Report) BookingID() uuid.UUID                  { return r.bookingID }
func (r *Report) ReporterID() uuid.UUID                 { return r.reporterID }
func (r *Report) ReporterRole() booking.ActorRole       { return r.reporterRole }
func (r *Report) Summary() string                       { return r.summary }
func (r *Report) Description() string                   { return r.description }
func (r *Report) Severity() Severity                    { return r.severity }
func (r *Report) Status() ReportStatus                  { return r.status }
func (r *Report) PhotoURLs() []string                   { return r.photoURLs }
func (r *Report) EstimatedRepairCost() *decimal.Decimal { return r.estimatedRepairCost }
func (r *Report) BondAmountApplied() *decimal.Decimal   { return r.bondAmountApplied }
func (r *Report) ResolutionNotes() string               { return r.resolutionNotes }
func (r *Report) ReviewerID() *uuid.UUID                { return r.reviewerID }
func (r *Report) CreatedAt() time.Time                  { return r.createdAt }
func (r *Report) ReviewedAt() *time.Time                { return r.reviewedAt }
func (r *Report) ResolvedAt() *time.Time                { return r.resolvedAt }
func (r *Report) UpdatedAt() time.Time                  { return r.updatedAt }

// StartReview moves an OPEN or ESCALATED report to UNDER_REVIEW.
func (r *Report) StartReview(reviewerID uuid.UUID, at time.Time) error {
	if !r.status.CanTransitionTo(StatusUnderReview) {
		return domain.NewInvalidTransitionError(fmt.Sprintf(
			"damage report cannot move from %s to %s", r.status, StatusUnderReview))
	}
	at = at.UTC()
	r.status = StatusUnderReview
	r.reviewerID = &reviewerID
	r.reviewedAt = &at
	r.updatedAt = at
	return nil
}

// Resolution is an admin's decision on a report.
type Resolution struct {
	Outcome           ReportStatus
	BondAmountApplied *decimal.Decimal
	Notes             string
}

// Resolve applies res. bondCap is the booking's bond at booking time. All
// checks run before any field changes, so a rejected resolution leaves the
// report untouched.
func (r *Report) Resolve(res Resolution, bondCap decimal.Decimal, reviewerID uuid.UUID, at time.Time) error {
	if !res.Outcome.IsResolution() {
		return domain.NewValidationError(fmt.Sprintf("%s is not a resolution outcome", res.Outcome))
	}
	if !r.status.CanTransitionTo(res.Outcome) {
		return domain.NewInvalidTransitionError(fmt.Sprintf(
			"damage report cannot move from %s to %s", r.status, res.Outcome))
	}

	applied, err := appliedBond(res, bondCap)
	if err != nil {
		return err
	}

	at = at.UTC()
	r.status = res.Outcome
	r.bondAmountApplied = applied
	r.resolutionNotes = res.Notes
	r.reviewerID = &reviewerID
	if r.reviewedAt == nil {
		r.reviewedAt = &at
	}
	if res.Outcome.IsTerminalResolution() {
		r.resolvedAt = &at
	}
	r.updatedAt = at
	return nil
}

// IsTerminalResolution reports whether the outcome closes the report.
func (s ReportStatus) IsTerminalResolution() bool {
	return s.IsResolution() && s.IsTerminal()
}

func appliedBond(res Resolution, bondCap decimal.Decimal) (*decimal.Decimal, error) {
	amount := res.BondAmountApplied
	if amount != nil {
		if amount.IsNegative() {
			return nil, domain.NewValidationError("bond amount applied must not be negative")
		}
		if amount.GreaterThan(bondCap) {
			return nil, domain.NewInvariantError(fmt.Sprintf(
				"bond amount applied (%s) exceeds bond amount at booking (%s)",
				amount.StringFixed(2), bondCap.StringFixed(2)))
		}
	}

	switch res.Outcome {
	case StatusResolvedNoAction:
		if amount != nil && !amount.IsZero() {
			return nil, domain.NewValidationError("no-action resolution cannot apply bond")
		}
		return nil, nil
	case StatusResolvedPartialBond:
		if amount == nil || !amount.IsPositive() {
			return nil, domain.NewValidationError("partial bond resolution requires a positive bond amount")
		}
		if amount.GreaterThanOrEqual(bondCap) {
			return nil, domain.NewValidationError("partial bond resolution must apply less than the whole bond; use full bond")
		}
	case StatusResolvedFullBond:
		if amount == nil {
			full := bondCap
			return &full, nil
		}
		if !amount.Equal(bondCap) {
			return nil, domain.NewValidationError("full bond resolution must apply the whole bond")
		}
	}
	return amount, nil
}
