package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	damageDomain "github.com/rigshare/service-booking/internal/domain/damage"
	"github.com/rigshare/service-booking/pkg/domain"
)

// FileDamageReportRequest is the request DTO for filing a damage report.
type FileDamageReportRequest struct {
	Summary             string           `json:"summary" binding:"required"`
	Description         string           `json:"description"`
	Severity            string           `json:"severity" binding:"required"`
	PhotoURLs           []string         `json:"photo_urls"`
	EstimatedRepairCost *decimal.Decimal `json:"estimated_repair_cost"`
}

// ResolveDamageReportRequest is the admin request to resolve a report.
type ResolveDamageReportRequest struct {
	Outcome           string           `json:"outcome" binding:"required"`
	BondAmountApplied *decimal.Decimal `json:"bond_amount_applied"`
	Notes             string           `json:"notes"`
}

// DamageReportDTO is the response representation of a damage report.
type DamageReportDTO struct {
	ID                  uuid.UUID        `json:"id"`
	BookingID           uuid.UUID        `json:"booking_id"`
	ReporterID          uuid.UUID        `json:"reporter_id"`
	ReporterRole        string           `json:"reporter_role"`
	Summary             string           `json:"summary"`
	Description         string           `json:"description,omitempty"`
	Severity            string           `json:"severity"`
	Status              string           `json:"status"`
	PhotoURLs           []string         `json:"photo_urls"`
	EstimatedRepairCost *decimal.Decimal `json:"estimated_repair_cost,omitempty"`
	BondAmountApplied   *decimal.Decimal `json:"bond_amount_applied,omitempty"`
	ResolutionNotes     string           `json:"resolution_notes,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	ReviewedAt          *time.Time       `json:"reviewed_at,omitempty"`
	ResolvedAt          *time.Time       `json:"resolved_at,omitempty"`
}

// DamageService runs the damage report workflow and keeps the booking's
// damage status in step with it.
type DamageService struct {
	reports  damageDomain.ReportRepository
	bookings bookingDomain.BookingRepository
	notifier NotificationSender
	logger   *zap.Logger
}

// NewDamageService creates a new DamageService.
func NewDamageService(
	reports damageDomain.ReportRepository,
	bookings bookingDomain.BookingRepository,
	notifier NotificationSender,
	logger *zap.Logger,
) *DamageService {
	return &DamageService{reports: reports, bookings: bookings, notifier: notifier, logger: logger}
}

// reportableStatuses are the booking states in which damage can be reported.
var reportableStatuses = map[bookingDomain.BookingStatus]bool{
	bookingDomain.StatusInUse:                    true,
	bookingDomain.StatusAwaitingReturnInspection: true,
	bookingDomain.StatusInDispute:                true,
	bookingDomain.StatusCompleted:                true,
}

// FileReport records a damage report and flags the booking as having
// potential damage.
func (s *DamageService) FileReport(ctx context.Context, bookingID uuid.UUID, actor Actor, req FileDamageReportRequest) (*DamageReportDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkActorIdentity(bk, actor); err != nil {
		return nil, err
	}
	if !reportableStatuses[bk.Status()] {
		return nil, domain.NewPreconditionError(fmt.Sprintf(
			"damage can only be reported during or after the rental, booking is %s", bk.Status()))
	}

	severity, err := damageDomain.ParseSeverity(req.Severity)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	report, err := damageDomain.NewReport(damageDomain.NewReportParams{
		BookingID:           bk.ID(),
		ReporterID:          actor.ID,
		ReporterRole:        actor.Role,
		Summary:             req.Summary,
		Description:         req.Description,
		Severity:            severity,
		PhotoURLs:           req.PhotoURLs,
		EstimatedRepairCost: req.EstimatedRepairCost,
	})
	if err != nil {
		return nil, err
	}

	// Confirmed damage from an escalated report is not downgraded by a new filing.
	var bw *damageDomain.BookingWrite
	if bk.DamageStatus() != bookingDomain.DamageConfirmed {
		bw = damageStatusWrite(bk, bookingDomain.DamagePotentialReported)
	}
	if err := s.reports.Save(ctx, report, bw); err != nil {
		return nil, s.writeFailure("failed to save damage report", bk, err)
	}

	s.notify(ctx, otherParty(bk, actor.ID), NotifyDamageReported, bk, report)

	s.logger.Info("damage report filed",
		zap.String("report_id", report.ID().String()),
		zap.String("booking_id", bk.ID().String()),
		zap.String("severity", string(severity)),
		zap.String("reporter_role", string(actor.Role)),
	)
	result := toDamageReportDTO(report)
	return &result, nil
}

// StartReview moves a report to UNDER_REVIEW (admin).
func (s *DamageService) StartReview(ctx context.Context, reportID, adminID uuid.UUID) (*DamageReportDTO, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if err := report.StartReview(adminID, time.Now()); err != nil {
		return nil, err
	}
	if err := s.reports.Update(ctx, report, nil); err != nil {
		return nil, domain.NewPersistenceError("failed to update damage report", err)
	}
	result := toDamageReportDTO(report)
	return &result, nil
}

// ResolveReport applies an admin decision. The applied bond is capped at the
// booking's bond; a rejected resolution writes nothing.
func (s *DamageService) ResolveReport(ctx context.Context, reportID, adminID uuid.UUID, req ResolveDamageReportRequest) (*DamageReportDTO, error) {
	outcome, err := damageDomain.ParseReportStatus(req.Outcome)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	bk, err := s.bookings.FindByID(ctx, report.BookingID())
	if err != nil {
		return nil, err
	}

	if err := report.Resolve(damageDomain.Resolution{
		Outcome:           outcome,
		BondAmountApplied: req.BondAmountApplied,
		Notes:             req.Notes,
	}, bk.BondAmount(), adminID, time.Now()); err != nil {
		return nil, err
	}

	siblings, err := s.reports.FindByBookingID(ctx, bk.ID())
	if err != nil {
		return nil, domain.NewPersistenceError("failed to list damage reports", err)
	}
	damageStatus := damageDomain.BookingDamageStatusAfter(report, siblings)

	if err := s.reports.Update(ctx, report, damageStatusWrite(bk, damageStatus)); err != nil {
		return nil, s.writeFailure("failed to update damage report", bk, err)
	}

	s.notify(ctx, bk.RenterID(), NotifyDamageReportResolved, bk, report)
	s.notify(ctx, bk.OwnerID(), NotifyDamageReportResolved, bk, report)

	s.logger.Info("damage report resolved",
		zap.String("report_id", report.ID().String()),
		zap.String("booking_id", bk.ID().String()),
		zap.String("outcome", string(outcome)),
		zap.String("damage_status", string(damageStatus)),
	)
	result := toDamageReportDTO(report)
	return &result, nil
}

// GetReport returns a report to a party of its booking or an admin.
func (s *DamageService) GetReport(ctx context.Context, reportID, userID uuid.UUID, isAdmin bool) (*DamageReportDTO, error) {
	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		bk, err := s.bookings.FindByID(ctx, report.BookingID())
		if err != nil {
			return nil, err
		}
		if !bk.IsOwner(userID) && !bk.IsRenter(userID) {
			return nil, domain.NewForbiddenError("you are not a party to this booking")
		}
	}
	result := toDamageReportDTO(report)
	return &result, nil
}

// ListReports returns every report filed against a booking.
func (s *DamageService) ListReports(ctx context.Context, bookingID uuid.UUID, actor Actor) ([]DamageReportDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := checkActorIdentity(bk, actor); err != nil {
		return nil, domain.NewForbiddenError("you are not a party to this booking")
	}
	reports, err := s.reports.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list damage reports: %w", err)
	}
	dtos := make([]DamageReportDTO, len(reports))
	for i, r := range reports {
		dtos[i] = toDamageReportDTO(r)
	}
	return dtos, nil
}

func damageStatusWrite(bk *bookingDomain.Booking, status bookingDomain.DamageStatus) *damageDomain.BookingWrite {
	current := bk.Status()
	bk.SetDamageStatus(status)
	bk.IncrementVersion()
	return &damageDomain.BookingWrite{Booking: bk, ExpectedStatus: current}
}

// writeFailure maps a failed report write. A concurrent booking change is
// surfaced as a conflict so the caller can reload and retry.
func (s *DamageService) writeFailure(msg string, bk *bookingDomain.Booking, err error) error {
	s.logger.Error(msg,
		zap.String("booking_id", bk.ID().String()),
		zap.String("damage_status", string(bk.DamageStatus())),
		zap.Error(err),
	)
	if domain.IsKind(err, domain.KindConflict) || domain.IsKind(err, domain.KindNotFound) {
		return err
	}
	return domain.NewPersistenceError(msg, err)
}

func (s *DamageService) notify(ctx context.Context, userID uuid.UUID, kind NotificationType, bk *bookingDomain.Booking, report *damageDomain.Report) {
	err := s.notifier.Send(ctx, Notification{
		UserID: userID,
		Type:   kind,
		Payload: map[string]string{
			PayloadBookingID: bk.ID().String(),
			PayloadReportID:  report.ID().String(),
			PayloadOutcome:   string(report.Status()),
		},
	})
	if err != nil {
		s.logger.Error("failed to send damage notification",
			zap.String("report_id", report.ID().String()),
			zap.String("type", string(kind)),
			zap.Error(err),
		)
	}
}

func toDamageReportDTO(r *damageDomain.Report) DamageReportDTO {
	photos := r.PhotoURLs()
	if photos == nil {
		photos = []string{}
	}
	return DamageReportDTO{
		ID:                  r.ID(),
		BookingID:           r.BookingID(),
		ReporterID:          r.ReporterID(),
		ReporterRole:        string(r.ReporterRole()),
		Summary:             r.Summary(),
		Description:         r.Description(),
		Severity:            string(r.Severity()),
		Status:              string(r.Status()),
		PhotoURLs:           photos,
		EstimatedRepairCost: r.EstimatedRepairCost(),
		BondAmountApplied:   r.BondAmountApplied(),
		ResolutionNotes:     r.ResolutionNotes(),
		CreatedAt:           r.CreatedAt(),
		ReviewedAt:          r.ReviewedAt(),
		ResolvedAt:          r.ResolvedAt(),
	}
}
