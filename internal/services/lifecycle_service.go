package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrMentorNotFound         = errors.New("mentor not found")
	ErrMentorNotVerified      = errors.New("mentor not verified")
	ErrNoPendingReassignment  = errors.New("no pending reassignment")
	ErrNoPendingReschedule    = errors.New("no pending reschedule request")
	ErrReschedulePending      = errors.New("a reschedule request is already pending")
	ErrNotInitiator           = errors.New("only the initiator may withdraw")
	ErrNoShowTooEarly         = errors.New("session has not started yet")
	ErrNoShowWindowClosed     = errors.New("no-show report window has closed")
	ErrRescheduleLimit        = errors.New("reschedule limit reached")
	ErrRescheduleNotice       = errors.New("proposed time violates minimum notice")
)

type mentorProfileReader interface {
	GetByUserID(ctx context.Context, userID int64) (*models.MentorProfile, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, input DispatchInput)
}

type lifecyclePolicies interface {
	CancellationPolicy(ctx context.Context) CancellationPolicy
	IntValue(ctx context.Context, key string) int
}

// LifecycleService is the transition engine: it decides whether a requested
// session transition is legal, computes derived refund values, and applies
// the session mutation and its audit entry in one transaction. Notifications
// go out after commit and are best-effort.
type LifecycleService struct {
	db             *pgxpool.Pool
	sessionRepo    *repository.SessionRepository
	userRepo       userReader
	mentorProfiles mentorProfileReader
	policies       lifecyclePolicies
	notifier       dispatcher
	logger         zerolog.Logger
	now            func() time.Time
}

func NewLifecycleService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	userRepo userReader,
	mentorProfiles mentorProfileReader,
	policies lifecyclePolicies,
	notifier dispatcher,
	logger zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		db:             db,
		sessionRepo:    sessionRepo,
		userRepo:       userRepo,
		mentorProfiles: mentorProfiles,
		policies:       policies,
		notifier:       notifier,
		logger:         logger,
		now:            time.Now,
	}
}

func clampPercentage(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func refundForPercentage(rate float64, pct int) float64 {
	return math.Round(rate*float64(pct)) / 100
}

// cancellationRefund applies the tiered policy: full refund while the gap to
// the start exceeds the free window, the partial tier between cutoff and free
// window, and the late tier once the gap drops below the cutoff.
func cancellationRefund(policy CancellationPolicy, now, scheduledAt time.Time) (int, string) {
	gap := scheduledAt.Sub(now)
	free := time.Duration(policy.FreeCancellationHours) * time.Hour
	cutoff := time.Duration(policy.CutoffHours) * time.Hour

	switch {
	case gap > free:
		return 100, "free"
	case gap >= cutoff:
		return clampPercentage(policy.PartialRefundPct), "partial"
	default:
		return clampPercentage(policy.LateRefundPct), "late"
	}
}

func refundStatusFor(amount float64) string {
	if amount > 0 {
		return models.RefundPending
	}
	return models.RefundNone
}

func counterpartyOf(session *models.Session, role models.Role) (int64, models.Role) {
	if role == models.RoleMentor {
		return session.MenteeID, models.RoleMentee
	}
	return session.MentorID, models.RoleMentor
}

func strPtr(s string) *string { return &s }

type txWork func(tx pgx.Tx) error

func (s *LifecycleService) inTx(ctx context.Context, work txWork) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := work(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type BookSessionInput struct {
	MentorID        int64
	ScheduledAt     time.Time
	DurationMinutes int
	MeetingType     string
}

func (s *LifecycleService) BookSession(
	ctx context.Context,
	menteeID int64,
	input BookSessionInput,
) (*models.Session, error) {
	if input.MentorID <= 0 || input.DurationMinutes <= 0 {
		return nil, ErrInvalidInput
	}
	if !models.ValidMeetingType(input.MeetingType) {
		return nil, ErrInvalidInput
	}
	if input.ScheduledAt.Before(s.now().Add(-1 * time.Minute)) {
		return nil, ErrInvalidInput
	}
	if menteeID == input.MentorID {
		return nil, ErrInvalidInput
	}

	mentor, err := s.userRepo.GetByID(ctx, input.MentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMentorNotFound
		}
		return nil, err
	}
	if !mentor.Role.IsMentor() {
		return nil, ErrMentorNotFound
	}

	profile, err := s.mentorProfiles.GetByUserID(ctx, input.MentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMentorNotFound
		}
		return nil, err
	}
	if !profile.IsVerified() || profile.HourlyRate == nil || *profile.HourlyRate <= 0 {
		return nil, ErrMentorNotVerified
	}

	rate := *profile.HourlyRate * float64(input.DurationMinutes) / 60

	var session *models.Session
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)

		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", input.MentorID); err != nil {
			return err
		}

		hasConflict, err := txSessionRepo.HasConflict(
			ctx,
			input.MentorID,
			input.ScheduledAt.UTC(),
			input.DurationMinutes,
		)
		if err != nil {
			return err
		}
		if hasConflict {
			return ErrConflict
		}

		session, err = txSessionRepo.Create(ctx, repository.CreateSessionInput{
			MentorID:        input.MentorID,
			MenteeID:        menteeID,
			ScheduledAt:     input.ScheduledAt.UTC(),
			DurationMinutes: input.DurationMinutes,
			MeetingType:     input.MeetingType,
			Rate:            rate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *LifecycleService) GetSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.IsParticipant(session) {
		return nil, ErrForbidden
	}
	return session, nil
}

func (s *LifecycleService) ListSessions(
	ctx context.Context,
	actor models.Actor,
	filter repository.SessionListFilter,
) ([]models.Session, error) {
	filter.ActorID = actor.ID
	filter.Role = actor.Role
	return s.sessionRepo.List(ctx, filter)
}

// CancelSession is the participant cancel with tiered refund. A mentor
// cancellation additionally opens the mentee's alternative-mentor choice.
func (s *LifecycleService) CancelSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	reason *string,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsMentor() && !actor.Role.IsMentee() {
		return nil, ErrForbidden
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !participantMatches(actor, session) {
			return ErrForbidden
		}
		if models.IsTerminalStatus(session.Status) {
			return ErrInvalidStateTransition
		}

		now := s.now()
		policy := s.policies.CancellationPolicy(ctx)
		pct, tier := cancellationRefund(policy, now, session.ScheduledAt)
		amount := refundForPercentage(session.Rate, pct)

		previous := session.Status
		session.Status = models.SessionCancelled
		session.CancelledBy = strPtr(string(actor.Role))
		session.CancellationReason = reason
		session.RefundPercentage = pct
		session.RefundAmount = amount
		session.RefundStatus = refundStatusFor(amount)
		if actor.Role.IsMentor() {
			session.ReassignmentStatus = models.ReassignmentAwaitingMenteeChoice
		}

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:      session.ID,
			UserID:         actor.ID,
			Action:         models.AuditSessionCancelled,
			PreviousStatus: &previous,
			NewStatus:      strPtr(models.SessionCancelled),
			ReasonDetails:  reason,
			PolicySnapshot: map[string]any{
				"free_cancellation_hours": policy.FreeCancellationHours,
				"cancellation_cutoff_hours": policy.CutoffHours,
				"partial_refund_percentage": policy.PartialRefundPct,
				"late_cancellation_refund_percentage": policy.LateRefundPct,
				"tier":              tier,
				"refund_percentage": pct,
				"refund_amount":     amount,
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		otherID, _ := counterpartyOf(session, actor.Role)
		message := fmt.Sprintf("Your session on %s was cancelled.", session.ScheduledAt.Format(time.RFC1123))
		if actor.Role.IsMentor() {
			message += " You can pick an alternative mentor or keep the refund."
		}
		pending = append(pending, DispatchInput{
			UserID:      otherID,
			Type:        models.NotificationSessionCancelled,
			Title:       "Session cancelled",
			Message:     message,
			RelatedID:   &session.ID,
			RelatedType: strPtr("session"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

// AdminCancelSession bypasses refund tiering and applies the explicit
// percentage given by the admin.
func (s *LifecycleService) AdminCancelSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	reason string,
	refundPercentage int,
	notifyParties bool,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if models.IsTerminalStatus(session.Status) {
			return ErrInvalidStateTransition
		}

		pct := clampPercentage(refundPercentage)
		amount := refundForPercentage(session.Rate, pct)

		previous := session.Status
		session.Status = models.SessionCancelled
		session.CancelledBy = strPtr(string(models.RoleAdmin))
		session.CancellationReason = &reason
		session.RefundPercentage = pct
		session.RefundAmount = amount
		session.RefundStatus = refundStatusFor(amount)

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:      session.ID,
			UserID:         actor.ID,
			Action:         models.AuditSessionCancelled,
			PreviousStatus: &previous,
			NewStatus:      strPtr(models.SessionCancelled),
			ReasonDetails:  &reason,
			PolicySnapshot: map[string]any{
				"admin_override":    true,
				"refund_percentage": pct,
				"refund_amount":     amount,
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		if notifyParties {
			message := fmt.Sprintf("Your session on %s was cancelled by an administrator.", session.ScheduledAt.Format(time.RFC1123))
			for _, userID := range []int64{session.MenteeID, session.MentorID} {
				pending = append(pending, DispatchInput{
					UserID:      userID,
					Type:        models.NotificationSessionCancelled,
					Title:       "Session cancelled",
					Message:     message,
					RelatedID:   &session.ID,
					RelatedType: strPtr("session"),
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

// CompleteSession marks the session completed. Admins force-complete through
// the same path; mentors must own the session.
func (s *LifecycleService) CompleteSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	reason *string,
	actualDuration *int,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsMentor() && !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if actualDuration != nil && *actualDuration <= 0 {
		return nil, ErrInvalidInput
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if actor.Role.IsMentor() && session.MentorID != actor.ID {
			return ErrForbidden
		}
		if models.IsTerminalStatus(session.Status) {
			return ErrInvalidStateTransition
		}

		now := s.now()
		previous := session.Status
		originalDuration := session.DurationMinutes
		session.Status = models.SessionCompleted
		session.EndedAt = &now
		if actualDuration != nil {
			session.ActualDurationMinutes = actualDuration
			session.DurationMinutes = *actualDuration
		}

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		snapshot := map[string]any{"original_duration_minutes": originalDuration}
		if actualDuration != nil {
			snapshot["actual_duration_minutes"] = *actualDuration
		}
		if actor.Role.IsAdmin() {
			snapshot["admin_override"] = true
		}
		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:      session.ID,
			UserID:         actor.ID,
			Action:         models.AuditSessionCompleted,
			PreviousStatus: &previous,
			NewStatus:      strPtr(models.SessionCompleted),
			ReasonDetails:  reason,
			PolicySnapshot: snapshot,
			Meta:           meta,
		})
		if err != nil {
			return err
		}

		recipients := []int64{session.MenteeID}
		if actor.Role.IsAdmin() {
			recipients = append(recipients, session.MentorID)
		}
		for _, userID := range recipients {
			pending = append(pending, DispatchInput{
				UserID:      userID,
				Type:        models.NotificationSessionCompleted,
				Title:       "Session completed",
				Message:     fmt.Sprintf("Your session on %s was marked completed.", session.ScheduledAt.Format(time.RFC1123)),
				RelatedID:   &session.ID,
				RelatedType: strPtr("session"),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

// MarkNoShow records a mentee no-show. Only the session's mentor may report,
// only after the start time, and only within the report window.
func (s *LifecycleService) MarkNoShow(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsMentor() {
		return nil, ErrForbidden
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.MentorID != actor.ID {
			return ErrForbidden
		}
		if session.Status != models.SessionScheduled {
			return ErrInvalidStateTransition
		}

		now := s.now()
		window := time.Duration(s.policies.IntValue(ctx, PolicyNoShowReportWindowHours)) * time.Hour
		if now.Before(session.ScheduledAt) {
			return ErrNoShowTooEarly
		}
		if now.Sub(session.ScheduledAt) > window {
			return ErrNoShowWindowClosed
		}

		previous := session.Status
		session.Status = models.SessionNoShow
		session.NoShowMarkedBy = &actor.ID
		session.NoShowMarkedAt = &now

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:      session.ID,
			UserID:         actor.ID,
			Action:         models.AuditSessionNoShow,
			PreviousStatus: &previous,
			NewStatus:      strPtr(models.SessionNoShow),
			PolicySnapshot: map[string]any{
				"no_show_report_window_hours": int(window / time.Hour),
				"hours_after_start":           now.Sub(session.ScheduledAt).Hours(),
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		pending = append(pending, DispatchInput{
			UserID:      session.MenteeID,
			Type:        models.NotificationSessionNoShow,
			Title:       "Marked as no-show",
			Message:     fmt.Sprintf("Your mentor reported you did not attend the session on %s.", session.ScheduledAt.Format(time.RFC1123)),
			RelatedID:   &session.ID,
			RelatedType: strPtr("session"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

// ClearNoShow restores a no-show session to an admin-chosen terminal status
// and clears the marker fields.
func (s *LifecycleService) ClearNoShow(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	reason string,
	restoreStatus string,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if restoreStatus != models.SessionCompleted && restoreStatus != models.SessionCancelled {
		return nil, ErrInvalidInput
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != models.SessionNoShow {
			return ErrInvalidStateTransition
		}

		snapshot := map[string]any{"restore_status": restoreStatus}
		if session.NoShowMarkedBy != nil {
			snapshot["original_marked_by"] = *session.NoShowMarkedBy
		}
		if session.NoShowMarkedAt != nil {
			snapshot["original_marked_at"] = session.NoShowMarkedAt.UTC().Format(time.RFC3339)
		}

		now := s.now()
		previous := session.Status
		session.Status = restoreStatus
		session.NoShowMarkedBy = nil
		session.NoShowMarkedAt = nil
		if restoreStatus == models.SessionCompleted {
			session.EndedAt = &now
		} else {
			session.CancelledBy = strPtr(string(models.RoleAdmin))
			session.CancellationReason = &reason
		}

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:      session.ID,
			UserID:         actor.ID,
			Action:         models.AuditSessionNoShowCleared,
			PreviousStatus: &previous,
			NewStatus:      &restoreStatus,
			ReasonDetails:  &reason,
			PolicySnapshot: snapshot,
			Meta:           meta,
		})
		if err != nil {
			return err
		}

		for _, userID := range []int64{session.MenteeID, session.MentorID} {
			pending = append(pending, DispatchInput{
				UserID:      userID,
				Type:        models.NotificationSessionCompleted,
				Title:       "No-show cleared",
				Message:     fmt.Sprintf("An administrator restored your session to %s.", restoreStatus),
				RelatedID:   &session.ID,
				RelatedType: strPtr("session"),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

// ReassignSession is the admin path: the mentor swap takes effect
// immediately unless the admin requires mentee acceptance.
func (s *LifecycleService) ReassignSession(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	newMentorID int64,
	reason string,
	requireMenteeAcceptance bool,
	notifyParties bool,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := s.checkMentorAssignable(ctx, newMentorID); err != nil {
		return nil, err
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if models.IsTerminalStatus(session.Status) {
			return ErrInvalidStateTransition
		}
		if session.MentorID == newMentorID {
			return ErrInvalidInput
		}

		hasConflict, err := txSessionRepo.HasConflictExcludingSession(
			ctx, newMentorID, session.ScheduledAt, session.DurationMinutes, session.ID,
		)
		if err != nil {
			return err
		}
		if hasConflict {
			return ErrConflict
		}

		now := s.now()
		previousMentor := session.MentorID
		session.MentorID = newMentorID
		session.WasReassigned = true
		session.ReassignedFromMentorID = &previousMentor
		session.ReassignedAt = &now
		if requireMenteeAcceptance {
			session.ReassignmentStatus = models.ReassignmentPendingAcceptance
		} else {
			session.ReassignmentStatus = models.ReassignmentAccepted
		}

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:     session.ID,
			UserID:        actor.ID,
			Action:        models.AuditSessionReassigned,
			ReasonDetails: &reason,
			PolicySnapshot: map[string]any{
				"previous_mentor_id":        previousMentor,
				"new_mentor_id":             newMentorID,
				"require_mentee_acceptance": requireMenteeAcceptance,
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		if notifyParties {
			pending = append(pending,
				DispatchInput{
					UserID:      session.MenteeID,
					Type:        models.NotificationSessionReassigned,
					Title:       "Session reassigned",
					Message:     "Your session was reassigned to a new mentor.",
					RelatedID:   &session.ID,
					RelatedType: strPtr("session"),
				},
				DispatchInput{
					UserID:      newMentorID,
					Type:        models.NotificationSessionReassigned,
					Title:       "New session assigned",
					Message:     fmt.Sprintf("A session on %s was assigned to you.", session.ScheduledAt.Format(time.RFC1123)),
					RelatedID:   &session.ID,
					RelatedType: strPtr("session"),
				},
				DispatchInput{
					UserID:      previousMentor,
					Type:        models.NotificationSessionReassigned,
					Title:       "Session reassigned",
					Message:     fmt.Sprintf("Your session on %s was reassigned to another mentor.", session.ScheduledAt.Format(time.RFC1123)),
					RelatedID:   &session.ID,
					RelatedType: strPtr("session"),
				},
			)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

// SelectAlternativeMentor is the mentee self-service path after a
// mentor-initiated cancellation or a pending reassignment: the session is
// revived under the chosen mentor and any provisional refund is dropped.
func (s *LifecycleService) SelectAlternativeMentor(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	newMentorID int64,
	scheduledAt *time.Time,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsMentee() {
		return nil, ErrForbidden
	}
	if err := s.checkMentorAssignable(ctx, newMentorID); err != nil {
		return nil, err
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.MenteeID != actor.ID {
			return ErrForbidden
		}
		if session.Status == models.SessionCompleted {
			return ErrInvalidStateTransition
		}
		if session.ReassignmentStatus != models.ReassignmentPendingAcceptance &&
			session.ReassignmentStatus != models.ReassignmentAwaitingMenteeChoice {
			return ErrNoPendingReassignment
		}
		if session.MentorID == newMentorID {
			return ErrInvalidInput
		}

		now := s.now()
		newTime := session.ScheduledAt
		if scheduledAt != nil {
			if scheduledAt.Before(now) {
				return ErrInvalidInput
			}
			newTime = scheduledAt.UTC()
		}

		hasConflict, err := txSessionRepo.HasConflictExcludingSession(
			ctx, newMentorID, newTime, session.DurationMinutes, session.ID,
		)
		if err != nil {
			return err
		}
		if hasConflict {
			return ErrConflict
		}

		previous := session.Status
		previousMentor := session.MentorID
		session.MentorID = newMentorID
		session.ScheduledAt = newTime
		session.Status = models.SessionScheduled
		session.WasReassigned = true
		session.ReassignedFromMentorID = &previousMentor
		session.ReassignedAt = &now
		session.ReassignmentStatus = models.ReassignmentAccepted
		session.CancelledBy = nil
		session.CancellationReason = nil
		session.RefundAmount = 0
		session.RefundPercentage = 0
		session.RefundStatus = models.RefundNone

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:      session.ID,
			UserID:         actor.ID,
			Action:         models.AuditSessionReassigned,
			PreviousStatus: &previous,
			NewStatus:      strPtr(models.SessionScheduled),
			PolicySnapshot: map[string]any{
				"previous_mentor_id": previousMentor,
				"new_mentor_id":      newMentorID,
				"mentee_selected":    true,
				"scheduled_at":       newTime.UTC().Format(time.RFC3339),
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		pending = append(pending,
			DispatchInput{
				UserID:      newMentorID,
				Type:        models.NotificationSessionReassigned,
				Title:       "New session assigned",
				Message:     fmt.Sprintf("A mentee selected you for a session on %s.", newTime.Format(time.RFC1123)),
				RelatedID:   &session.ID,
				RelatedType: strPtr("session"),
			},
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

// AcceptReassignment confirms a pending mentor swap.
func (s *LifecycleService) AcceptReassignment(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsMentee() {
		return nil, ErrForbidden
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.MenteeID != actor.ID {
			return ErrForbidden
		}
		if !session.WasReassigned || session.ReassignmentStatus != models.ReassignmentPendingAcceptance {
			return ErrNoPendingReassignment
		}

		session.ReassignmentStatus = models.ReassignmentAccepted

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID: session.ID,
			UserID:    actor.ID,
			Action:    models.AuditReassignmentAccepted,
			PolicySnapshot: map[string]any{
				"new_mentor_id": session.MentorID,
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		pending = append(pending, DispatchInput{
			UserID:      session.MentorID,
			Type:        models.NotificationReassignmentAccepted,
			Title:       "Reassignment accepted",
			Message:     fmt.Sprintf("The mentee accepted you for the session on %s.", session.ScheduledAt.Format(time.RFC1123)),
			RelatedID:   &session.ID,
			RelatedType: strPtr("session"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

// RejectReassignment cancels the session with a full refund. The 100% refund
// is a fixed business rule, independent of the cancellation tiers.
func (s *LifecycleService) RejectReassignment(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	reason *string,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsMentee() {
		return nil, ErrForbidden
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.MenteeID != actor.ID {
			return ErrForbidden
		}
		if !session.WasReassigned || session.ReassignmentStatus != models.ReassignmentPendingAcceptance {
			return ErrNoPendingReassignment
		}

		previous := session.Status
		session.Status = models.SessionCancelled
		session.CancelledBy = strPtr(string(models.RoleMentee))
		session.CancellationReason = reason
		session.ReassignmentStatus = models.ReassignmentRejected
		session.RefundPercentage = 100
		session.RefundAmount = session.Rate
		session.RefundStatus = refundStatusFor(session.Rate)

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:      session.ID,
			UserID:         actor.ID,
			Action:         models.AuditReassignmentRejected,
			PreviousStatus: &previous,
			NewStatus:      strPtr(models.SessionCancelled),
			ReasonDetails:  reason,
			PolicySnapshot: map[string]any{
				"refund_percentage": 100,
				"refund_amount":     session.Rate,
				"rationale":         "rejected reassignments always refund in full",
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		recipients := []int64{session.MentorID}
		if session.ReassignedFromMentorID != nil && *session.ReassignedFromMentorID != session.MentorID {
			recipients = append(recipients, *session.ReassignedFromMentorID)
		}
		for _, userID := range recipients {
			pending = append(pending, DispatchInput{
				UserID:      userID,
				Type:        models.NotificationReassignmentRejected,
				Title:       "Reassignment rejected",
				Message:     fmt.Sprintf("The mentee declined the reassignment for the session on %s.", session.ScheduledAt.Format(time.RFC1123)),
				RelatedID:   &session.ID,
				RelatedType: strPtr("session"),
			})
		}
		pending = append(pending, DispatchInput{
			UserID:      session.MenteeID,
			Type:        models.NotificationRefundIssued,
			Title:       "Full refund issued",
			Message:     fmt.Sprintf("You were refunded %.2f for the cancelled session.", session.Rate),
			RelatedID:   &session.ID,
			RelatedType: strPtr("session"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

const (
	RefundTypeFull    = "full"
	RefundTypePartial = "partial"
	RefundTypeBonus   = "bonus"
)

// ManualRefund applies an admin refund adjustment without touching the
// session status. bonus adds to the running total, full/partial replace it.
func (s *LifecycleService) ManualRefund(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	amount float64,
	reason string,
	refundType string,
	meta models.RequestMeta,
) (*models.Session, error) {
	if !actor.Role.IsAdmin() {
		return nil, ErrForbidden
	}
	if amount <= 0 {
		return nil, ErrInvalidInput
	}
	if refundType != RefundTypeFull && refundType != RefundTypePartial && refundType != RefundTypeBonus {
		return nil, ErrInvalidInput
	}

	var updated *models.Session
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}

		previousAmount := session.RefundAmount
		newTotal := amount
		if refundType == RefundTypeBonus {
			newTotal = previousAmount + amount
		}

		pct := 100
		if session.Rate > 0 {
			pct = clampPercentage(int(math.Round(newTotal / session.Rate * 100)))
		}

		session.RefundAmount = math.Round(newTotal*100) / 100
		session.RefundPercentage = pct
		session.RefundStatus = models.RefundPending

		updated, err = txSessionRepo.Update(ctx, session)
		if err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:     session.ID,
			UserID:        actor.ID,
			Action:        models.AuditManualRefund,
			ReasonDetails: &reason,
			PolicySnapshot: map[string]any{
				"refund_type":            refundType,
				"adjustment_amount":      amount,
				"previous_refund_amount": previousAmount,
				"new_refund_amount":      session.RefundAmount,
				"refund_percentage":      pct,
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		pending = append(pending, DispatchInput{
			UserID:      session.MenteeID,
			Type:        models.NotificationRefundIssued,
			Title:       "Refund issued",
			Message:     fmt.Sprintf("A refund of %.2f was issued for your session.", session.RefundAmount),
			RelatedID:   &session.ID,
			RelatedType: strPtr("session"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return updated, nil
}

func (s *LifecycleService) checkMentorAssignable(ctx context.Context, mentorID int64) error {
	if mentorID <= 0 {
		return ErrInvalidInput
	}
	mentor, err := s.userRepo.GetByID(ctx, mentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMentorNotFound
		}
		return err
	}
	if !mentor.Role.IsMentor() {
		return ErrMentorNotFound
	}
	profile, err := s.mentorProfiles.GetByUserID(ctx, mentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMentorNotFound
		}
		return err
	}
	if !profile.IsVerified() {
		return ErrMentorNotVerified
	}
	return nil
}

func participantMatches(actor models.Actor, session *models.Session) bool {
	switch actor.Role {
	case models.RoleMentor:
		return session.MentorID == actor.ID
	case models.RoleMentee:
		return session.MenteeID == actor.ID
	default:
		return false
	}
}

func (s *LifecycleService) dispatchAll(ctx context.Context, inputs []DispatchInput) {
	if s.notifier == nil {
		return
	}
	for _, input := range inputs {
		s.notifier.Dispatch(ctx, input)
	}
}
