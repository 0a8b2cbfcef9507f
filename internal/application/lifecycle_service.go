package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bookingDomain "github.com/rigshare/service-booking/internal/domain/booking"
	"github.com/rigshare/service-booking/pkg/domain"
)

// TransitionRequest describes who is moving a booking and why.
type TransitionRequest struct {
	BookingID uuid.UUID
	Actor     Actor
	Reason    string
	Metadata  map[string]string

	// Precondition assertions from the caller. The stored booking flags are
	// also honoured.
	IsPaymentComplete    bool
	IsInspectionComplete bool
}

// TransitionResult is the outcome of a transition. It is never accompanied
// by a Go error; failures carry ErrorKind and a user-facing Error message.
type TransitionResult struct {
	Success        bool                        `json:"success"`
	Booking        *BookingDTO                 `json:"booking,omitempty"`
	PreviousStatus bookingDomain.BookingStatus `json:"previous_status,omitempty"`
	NewStatus      bookingDomain.BookingStatus `json:"new_status,omitempty"`
	ErrorKind      domain.ErrorKind            `json:"error_kind,omitempty"`
	Error          string                      `json:"error,omitempty"`
}

// Err returns the failure as an *domain.AppError, or nil on success.
func (r TransitionResult) Err() error {
	if r.Success {
		return nil
	}
	return &domain.AppError{Kind: r.ErrorKind, Message: r.Error}
}

func failed(kind domain.ErrorKind, msg string) TransitionResult {
	return TransitionResult{ErrorKind: kind, Error: msg}
}

func failedWith(err error) TransitionResult {
	return failed(domain.KindOf(err), err.Error())
}

// AvailableAction is a transition the actor may trigger now.
type AvailableAction struct {
	Target bookingDomain.BookingStatus `json:"target"`
	Label  string                      `json:"label"`
}

// AvailableActionsDTO is the response of GetAvailableActions.
type AvailableActionsDTO struct {
	BookingID uuid.UUID                   `json:"booking_id"`
	Status    bookingDomain.BookingStatus `json:"status"`
	ActorRole bookingDomain.ActorRole     `json:"actor_role"`
	Actions   []AvailableAction           `json:"actions"`
}

// LifecycleService drives bookings through the state machine and emits the
// audit event and notification for every accepted transition.
type LifecycleService struct {
	repo     bookingDomain.BookingRepository
	audit    AuditRecorder
	notifier NotificationSender
	logger   *zap.Logger
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	repo bookingDomain.BookingRepository,
	audit AuditRecorder,
	notifier NotificationSender,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		repo:     repo,
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

// Transition moves the booking to target.
func (s *LifecycleService) Transition(ctx context.Context, req TransitionRequest, target bookingDomain.BookingStatus) TransitionResult {
	return s.transition(ctx, req, target, nil)
}

// sideWrite mutates the booking alongside the status change and returns
// extra audit metadata. It runs after validation and before persistence.
type sideWrite func(bk *bookingDomain.Booking) (map[string]string, error)

func (s *LifecycleService) transition(
	ctx context.Context,
	req TransitionRequest,
	target bookingDomain.BookingStatus,
	extra sideWrite,
) TransitionResult {
	bk, err := s.repo.FindByID(ctx, req.BookingID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return failedWith(err)
		}
		return failed(domain.KindPersistence, fmt.Sprintf("failed to load booking: %v", err))
	}

	from := bk.Status()
	if from.IsTerminal() {
		return failedWith(domain.NewTerminalStateError(string(from)))
	}

	if err := checkActorIdentity(bk, req.Actor); err != nil {
		return failedWith(err)
	}

	res := bookingDomain.Validate(from, target, req.Actor.Role, bookingDomain.TransitionContext{
		IsPaymentComplete:    req.IsPaymentComplete || bk.PaymentSucceeded(),
		IsInspectionComplete: req.IsInspectionComplete || bk.InspectionComplete(),
	})
	if !res.Valid {
		return failed(res.Kind, res.Error)
	}

	now := time.Now().UTC()
	if err := bk.ApplyTransition(target, req.Reason, now); err != nil {
		return failedWith(err)
	}

	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if extra != nil {
		extraMeta, err := extra(bk)
		if err != nil {
			return failedWith(err)
		}
		for k, v := range extraMeta {
			metadata[k] = v
		}
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk, from); err != nil {
		s.logger.Warn("booking transition not persisted",
			zap.String("booking_id", bk.ID().String()),
			zap.String("from", string(from)),
			zap.String("to", string(target)),
			zap.Error(err),
		)
		if domain.IsKind(err, domain.KindConflict) {
			return failedWith(err)
		}
		return failed(domain.KindPersistence, err.Error())
	}

	evt := bookingDomain.NewTransitionEvent(bk.ID(), from, target, req.Actor.ID, req.Actor.Role, req.Reason, metadata, now)
	if err := s.audit.Record(ctx, evt); err != nil {
		s.logger.Error("failed to record audit event",
			zap.String("booking_id", bk.ID().String()),
			zap.String("event_id", evt.ID.String()),
			zap.Error(err),
		)
	}

	s.notifyTransition(ctx, bk, from, target, req)

	s.logger.Info("booking transitioned",
		zap.String("booking_id", bk.ID().String()),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("actor_role", string(req.Actor.Role)),
	)

	dto := toBookingDTO(bk)
	return TransitionResult{
		Success:        true,
		Booking:        &dto,
		PreviousStatus: from,
		NewStatus:      target,
	}
}

func (s *LifecycleService) notifyTransition(
	ctx context.Context,
	bk *bookingDomain.Booking,
	from, to bookingDomain.BookingStatus,
	req TransitionRequest,
) {
	rule, ok := notificationRuleFor(to)
	if !ok {
		return
	}
	n := Notification{
		UserID: recipientFor(rule, bk, req.Actor.ID),
		Type:   rule.kind,
		Payload: map[string]string{
			PayloadBookingID:      bk.ID().String(),
			PayloadPreviousStatus: string(from),
			PayloadNewStatus:      string(to),
		},
	}
	if req.Reason != "" {
		n.Payload[PayloadReason] = req.Reason
	}
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Error("failed to send transition notification",
			zap.String("booking_id", bk.ID().String()),
			zap.String("type", string(rule.kind)),
			zap.Error(err),
		)
	}
}

// checkActorIdentity rejects a RENTER or OWNER claim by someone who is not
// that party of the booking. ADMIN and SYSTEM are vouched for by the caller.
func checkActorIdentity(bk *bookingDomain.Booking, actor Actor) error {
	switch actor.Role {
	case bookingDomain.ActorOwner:
		if !bk.IsOwner(actor.ID) {
			return domain.NewUnauthorizedActorError("actor OWNER is not the owner of this booking")
		}
	case bookingDomain.ActorRenter:
		if !bk.IsRenter(actor.ID) {
			return domain.NewUnauthorizedActorError("actor RENTER is not the renter of this booking")
		}
	case bookingDomain.ActorAdmin, bookingDomain.ActorSystem:
	default:
		return domain.NewUnauthorizedActorError(fmt.Sprintf("unknown actor role %q", actor.Role))
	}
	return nil
}

// ResolveActor derives the booking role of userID. Admins act as ADMIN.
func (s *LifecycleService) ResolveActor(ctx context.Context, bookingID, userID uuid.UUID, isAdmin bool) (Actor, error) {
	if isAdmin {
		return Actor{ID: userID, Role: bookingDomain.ActorAdmin}, nil
	}
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return Actor{}, err
	}
	switch {
	case bk.IsOwner(userID):
		return Actor{ID: userID, Role: bookingDomain.ActorOwner}, nil
	case bk.IsRenter(userID):
		return Actor{ID: userID, Role: bookingDomain.ActorRenter}, nil
	}
	return Actor{}, domain.NewForbiddenError("you are not a party to this booking")
}

// --- Convenience operations ---

func (s *LifecycleService) simple(ctx context.Context, bookingID uuid.UUID, actor Actor, target bookingDomain.BookingStatus, reason, fallback string) TransitionResult {
	if reason == "" {
		reason = fallback
	}
	return s.Transition(ctx, TransitionRequest{BookingID: bookingID, Actor: actor, Reason: reason}, target)
}

// AcceptBooking moves a PENDING booking to ACCEPTED. When payment was
// confirmed before acceptance the booking is released for pickup straight
// away; if that release fails the booking stays ACCEPTED with its payment
// flag and can be released by an admin.
func (s *LifecycleService) AcceptBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) TransitionResult {
	result := s.simple(ctx, bookingID, actor, bookingDomain.StatusAccepted, "", "Booking accepted")
	if !result.Success || result.Booking == nil || !result.Booking.PaymentSucceeded {
		return result
	}

	release := s.Transition(ctx, TransitionRequest{
		BookingID:         bookingID,
		Actor:             SystemActor,
		Reason:            "Payment confirmed before acceptance",
		IsPaymentComplete: true,
	}, bookingDomain.StatusAwaitingPickup)
	if !release.Success {
		s.logger.Warn("failed to release paid booking after acceptance",
			zap.String("booking_id", bookingID.String()),
			zap.String("error", release.Error),
		)
		return result
	}
	result.Booking = release.Booking
	result.NewStatus = release.NewStatus
	return result
}

// DeclineBooking moves a PENDING booking to DECLINED.
func (s *LifecycleService) DeclineBooking(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) TransitionResult {
	return s.simple(ctx, bookingID, actor, bookingDomain.StatusDeclined, reason, "Booking declined")
}

// CancelBooking cancels a booking that has not started.
func (s *LifecycleService) CancelBooking(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) TransitionResult {
	return s.simple(ctx, bookingID, actor, bookingDomain.StatusCancelled, reason, "Booking cancelled")
}

// MarkReadyForPickup moves an ACCEPTED booking to AWAITING_PICKUP once paid.
func (s *LifecycleService) MarkReadyForPickup(ctx context.Context, bookingID uuid.UUID, actor Actor, paymentComplete bool) TransitionResult {
	return s.Transition(ctx, TransitionRequest{
		BookingID:         bookingID,
		Actor:             actor,
		Reason:            "Payment received, ready for pickup",
		IsPaymentComplete: paymentComplete,
	}, bookingDomain.StatusAwaitingPickup)
}

// RecordPaymentSuccess stores the payment signal on the booking and then
// advances it to AWAITING_PICKUP as SYSTEM.
func (s *LifecycleService) RecordPaymentSuccess(ctx context.Context, bookingID uuid.UUID, paymentID string) TransitionResult {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return failedWith(err)
		}
		return failed(domain.KindPersistence, fmt.Sprintf("failed to load booking: %v", err))
	}
	if bk.Status().IsTerminal() {
		return failedWith(domain.NewTerminalStateError(string(bk.Status())))
	}
	if !bk.PaymentSucceeded() {
		status := bk.Status()
		bk.MarkPaymentSucceeded()
		bk.IncrementVersion()
		if err := s.repo.Update(ctx, bk, status); err != nil {
			if domain.IsKind(err, domain.KindConflict) {
				return failedWith(err)
			}
			return failed(domain.KindPersistence, err.Error())
		}
	}

	return s.Transition(ctx, TransitionRequest{
		BookingID:         bookingID,
		Actor:             SystemActor,
		Reason:            "Payment confirmed",
		Metadata:          map[string]string{bookingDomain.MetaPaymentID: paymentID},
		IsPaymentComplete: true,
	}, bookingDomain.StatusAwaitingPickup)
}

// StartRental hands the equipment over, recording the engine-hours reading.
func (s *LifecycleService) StartRental(ctx context.Context, bookingID uuid.UUID, actor Actor, engineHours *decimal.Decimal) TransitionResult {
	req := TransitionRequest{BookingID: bookingID, Actor: actor, Reason: "Equipment handed over to renter"}
	return s.transition(ctx, req, bookingDomain.StatusInUse, func(bk *bookingDomain.Booking) (map[string]string, error) {
		if err := bk.RecordPickupHours(engineHours); err != nil {
			return nil, err
		}
		return engineHoursMeta(bk), nil
	})
}

// MarkReturned records the return and the engine-hours reading. The booking
// always moves to AWAITING_RETURN_INSPECTION; disputes are raised separately.
func (s *LifecycleService) MarkReturned(ctx context.Context, bookingID uuid.UUID, actor Actor, engineHours *decimal.Decimal, notes string) TransitionResult {
	reason := notes
	if reason == "" {
		reason = "Equipment returned"
	}
	req := TransitionRequest{BookingID: bookingID, Actor: actor, Reason: reason}
	return s.transition(ctx, req, bookingDomain.StatusAwaitingReturnInspection, func(bk *bookingDomain.Booking) (map[string]string, error) {
		if err := bk.RecordReturnHours(engineHours); err != nil {
			return nil, err
		}
		return engineHoursMeta(bk), nil
	})
}

// CompleteInspection marks the return checklist done, which unlocks
// completion from AWAITING_RETURN_INSPECTION.
func (s *LifecycleService) CompleteInspection(ctx context.Context, bookingID uuid.UUID, actor Actor) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.Status().IsTerminal() {
		return nil, domain.NewTerminalStateError(string(bk.Status()))
	}
	if err := checkActorIdentity(bk, actor); err != nil {
		return nil, err
	}
	if actor.Role != bookingDomain.ActorOwner && actor.Role != bookingDomain.ActorAdmin {
		return nil, domain.NewUnauthorizedActorError(fmt.Sprintf(
			"actor %s cannot complete the return inspection; allowed actors: OWNER, ADMIN", actor.Role))
	}

	status := bk.Status()
	if err := bk.MarkInspectionComplete(); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk, status); err != nil {
		return nil, err
	}

	s.logger.Info("return inspection completed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("actor_role", string(actor.Role)),
	)
	result := toBookingDTO(bk)
	return &result, nil
}

// CompleteBooking closes a booking after inspection.
func (s *LifecycleService) CompleteBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) TransitionResult {
	return s.simple(ctx, bookingID, actor, bookingDomain.StatusCompleted, "", "Rental completed")
}

// RaiseDispute moves a booking under inspection into dispute.
func (s *LifecycleService) RaiseDispute(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) TransitionResult {
	return s.simple(ctx, bookingID, actor, bookingDomain.StatusInDispute, reason, "Dispute raised")
}

// ResolveDispute closes a disputed booking as COMPLETED. This is an admin
// override and does not require the inspection checklist.
func (s *LifecycleService) ResolveDispute(ctx context.Context, bookingID uuid.UUID, actor Actor, resolution string) TransitionResult {
	return s.simple(ctx, bookingID, actor, bookingDomain.StatusCompleted, resolution, "Dispute resolved")
}

// ReturnToInspection sends a disputed booking back to return inspection.
func (s *LifecycleService) ReturnToInspection(ctx context.Context, bookingID uuid.UUID, actor Actor, reason string) TransitionResult {
	return s.simple(ctx, bookingID, actor, bookingDomain.StatusAwaitingReturnInspection, reason, "Returned to inspection")
}

// GetAvailableActions lists the transitions actor may trigger on the booking
// now. It filters with the same identity and actor checks as Transition.
func (s *LifecycleService) GetAvailableActions(ctx context.Context, bookingID uuid.UUID, actor Actor) (*AvailableActionsDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	result := &AvailableActionsDTO{
		BookingID: bk.ID(),
		Status:    bk.Status(),
		ActorRole: actor.Role,
		Actions:   []AvailableAction{},
	}
	if checkActorIdentity(bk, actor) != nil {
		return result, nil
	}
	for _, t := range bookingDomain.AvailableTransitions(bk.Status(), actor.Role) {
		result.Actions = append(result.Actions, AvailableAction{Target: t.To, Label: t.Label})
	}
	return result, nil
}

func engineHoursMeta(bk *bookingDomain.Booking) map[string]string {
	meta := map[string]string{}
	if v := bk.EngineHoursAtPickup(); v != nil {
		meta[bookingDomain.MetaEngineHoursAtPickup] = v.String()
	}
	if v := bk.EngineHoursAtReturn(); v != nil {
		meta[bookingDomain.MetaEngineHoursAtReturn] = v.String()
	}
	if v := bk.EngineHoursUsed(); v != nil {
		meta[bookingDomain.MetaEngineHoursUsed] = v.String()
	}
	return meta
}
