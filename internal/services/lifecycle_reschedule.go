package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/models"
	"github.com/abdur-rahman-shawl/MentorLoopBack/internal/repository"
)

const (
	RescheduleDecisionAccept  = "accept"
	RescheduleDecisionReject  = "reject"
	RescheduleDecisionCounter = "counter"
)

// ProposeReschedule opens a negotiation to move the session. Only one request
// may be pending per session at a time.
func (s *LifecycleService) ProposeReschedule(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	proposedTime time.Time,
	meta models.RequestMeta,
) (*models.RescheduleRequest, error) {
	if !actor.Role.IsMentor() && !actor.Role.IsMentee() {
		return nil, ErrForbidden
	}

	var request *models.RescheduleRequest
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txRescheduleRepo := repository.NewRescheduleRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !participantMatches(actor, session) {
			return ErrForbidden
		}
		if session.Status != models.SessionScheduled {
			return ErrInvalidStateTransition
		}
		if session.PendingRescheduleRequestID != nil {
			return ErrReschedulePending
		}

		now := s.now()
		minNotice := time.Duration(s.policies.IntValue(ctx, PolicyRescheduleMinNoticeHours)) * time.Hour
		if proposedTime.Sub(now) < minNotice {
			return ErrRescheduleNotice
		}

		maxReschedules := s.policies.IntValue(ctx, PolicyMaxReschedulesPerSession)
		accepted, err := txRescheduleRepo.CountAcceptedBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}
		if accepted >= maxReschedules {
			return ErrRescheduleLimit
		}

		request, err = txRescheduleRepo.Create(ctx, repository.CreateRescheduleInput{
			SessionID:    sessionID,
			InitiatorID:  actor.ID,
			InitiatedBy:  string(actor.Role),
			ProposedTime: proposedTime.UTC(),
		})
		if err != nil {
			return err
		}

		session.PendingRescheduleRequestID = &request.ID
		proposed := proposedTime.UTC()
		session.PendingRescheduleTime = &proposed
		session.PendingRescheduleBy = strPtr(string(actor.Role))
		if _, err := txSessionRepo.Update(ctx, session); err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID: session.ID,
			UserID:    actor.ID,
			Action:    models.AuditRescheduleProposed,
			PolicySnapshot: map[string]any{
				"request_id":                  request.ID,
				"proposed_time":               proposed.Format(time.RFC3339),
				"reschedule_min_notice_hours": int(minNotice / time.Hour),
				"accepted_reschedules":        accepted,
				"max_reschedules_per_session": maxReschedules,
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		otherID, _ := counterpartyOf(session, actor.Role)
		pending = append(pending, DispatchInput{
			UserID:      otherID,
			Type:        models.NotificationRescheduleProposed,
			Title:       "Reschedule proposed",
			Message:     fmt.Sprintf("A new time was proposed for your session: %s.", proposed.Format(time.RFC1123)),
			RelatedID:   &request.ID,
			RelatedType: strPtr("reschedule_request"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return request, nil
}

// RespondReschedule lets the counter-party accept, reject, or counter a
// pending proposal. Accepting moves the session's scheduled time; countering
// swaps the initiator and keeps the negotiation open.
func (s *LifecycleService) RespondReschedule(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	decision string,
	counterTime *time.Time,
	note *string,
	meta models.RequestMeta,
) (*models.RescheduleRequest, error) {
	if !actor.Role.IsMentor() && !actor.Role.IsMentee() {
		return nil, ErrForbidden
	}
	switch decision {
	case RescheduleDecisionAccept, RescheduleDecisionReject:
	case RescheduleDecisionCounter:
		if counterTime == nil {
			return nil, ErrInvalidInput
		}
	default:
		return nil, ErrInvalidInput
	}

	var request *models.RescheduleRequest
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txRescheduleRepo := repository.NewRescheduleRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !participantMatches(actor, session) {
			return ErrForbidden
		}
		if session.PendingRescheduleRequestID == nil {
			return ErrNoPendingReschedule
		}

		current, err := txRescheduleRepo.GetByIDForUpdate(ctx, *session.PendingRescheduleRequestID)
		if err != nil {
			return err
		}
		if !models.RescheduleOpen(current.Status) {
			return ErrInvalidStateTransition
		}
		if current.InitiatorID == actor.ID {
			// The proposing side cannot answer its own proposal.
			return ErrForbidden
		}

		now := s.now()
		switch decision {
		case RescheduleDecisionAccept:
			hasConflict, err := txSessionRepo.HasConflictExcludingSession(
				ctx, session.MentorID, current.ProposedTime, session.DurationMinutes, session.ID,
			)
			if err != nil {
				return err
			}
			if hasConflict {
				return ErrConflict
			}

			request, err = txRescheduleRepo.Resolve(ctx, repository.ResolveRescheduleInput{
				RequestID:      current.ID,
				Status:         models.RescheduleAccepted,
				ResolvedBy:     string(actor.Role),
				ResolverID:     actor.ID,
				ResolutionNote: note,
			})
			if err != nil {
				return err
			}

			session.ScheduledAt = current.ProposedTime
			clearPendingReschedule(session)
			if _, err := txSessionRepo.Update(ctx, session); err != nil {
				return err
			}

		case RescheduleDecisionReject:
			request, err = txRescheduleRepo.Resolve(ctx, repository.ResolveRescheduleInput{
				RequestID:      current.ID,
				Status:         models.RescheduleRejected,
				ResolvedBy:     string(actor.Role),
				ResolverID:     actor.ID,
				ResolutionNote: note,
			})
			if err != nil {
				return err
			}

			clearPendingReschedule(session)
			if _, err := txSessionRepo.Update(ctx, session); err != nil {
				return err
			}

		case RescheduleDecisionCounter:
			minNotice := time.Duration(s.policies.IntValue(ctx, PolicyRescheduleMinNoticeHours)) * time.Hour
			if counterTime.Sub(now) < minNotice {
				return ErrRescheduleNotice
			}

			request, err = txRescheduleRepo.Counter(
				ctx, current.ID, actor.ID, string(actor.Role), counterTime.UTC(),
			)
			if err != nil {
				return err
			}

			proposed := counterTime.UTC()
			session.PendingRescheduleTime = &proposed
			session.PendingRescheduleBy = strPtr(string(actor.Role))
			if _, err := txSessionRepo.Update(ctx, session); err != nil {
				return err
			}
		}

		snapshot := map[string]any{
			"request_id": current.ID,
			"decision":   decision,
		}
		if decision == RescheduleDecisionAccept {
			snapshot["new_scheduled_at"] = current.ProposedTime.UTC().Format(time.RFC3339)
		}
		if counterTime != nil {
			snapshot["counter_time"] = counterTime.UTC().Format(time.RFC3339)
		}
		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID:      session.ID,
			UserID:         actor.ID,
			Action:         models.AuditRescheduleResolved,
			ReasonDetails:  note,
			PolicySnapshot: snapshot,
			Meta:           meta,
		})
		if err != nil {
			return err
		}

		otherID, _ := counterpartyOf(session, actor.Role)
		pending = append(pending, DispatchInput{
			UserID:      otherID,
			Type:        models.NotificationRescheduleResolved,
			Title:       "Reschedule update",
			Message:     rescheduleResolutionMessage(decision, request),
			RelatedID:   &request.ID,
			RelatedType: strPtr("reschedule_request"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return request, nil
}

// WithdrawReschedule cancels a pending proposal. Only the original initiator
// of the current proposal may withdraw it; the session's scheduled time is
// untouched.
func (s *LifecycleService) WithdrawReschedule(
	ctx context.Context,
	actor models.Actor,
	sessionID int64,
	meta models.RequestMeta,
) (*models.RescheduleRequest, error) {
	if !actor.Role.IsMentor() && !actor.Role.IsMentee() {
		return nil, ErrForbidden
	}

	var request *models.RescheduleRequest
	var pending []DispatchInput
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		txSessionRepo := repository.NewSessionRepository(tx)
		txRescheduleRepo := repository.NewRescheduleRepository(tx)
		txAuditRepo := repository.NewAuditRepository(tx)

		session, err := txSessionRepo.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !participantMatches(actor, session) {
			return ErrForbidden
		}
		if session.PendingRescheduleRequestID == nil {
			return ErrNoPendingReschedule
		}

		current, err := txRescheduleRepo.GetByIDForUpdate(ctx, *session.PendingRescheduleRequestID)
		if err != nil {
			return err
		}
		if !models.RescheduleOpen(current.Status) {
			return ErrInvalidStateTransition
		}
		if current.InitiatorID != actor.ID {
			return ErrNotInitiator
		}

		request, err = txRescheduleRepo.Resolve(ctx, repository.ResolveRescheduleInput{
			RequestID:  current.ID,
			Status:     models.RescheduleCancelled,
			ResolvedBy: string(actor.Role),
			ResolverID: actor.ID,
		})
		if err != nil {
			return err
		}

		clearPendingReschedule(session)
		if _, err := txSessionRepo.Update(ctx, session); err != nil {
			return err
		}

		_, err = txAuditRepo.Record(ctx, repository.RecordAuditInput{
			SessionID: session.ID,
			UserID:    actor.ID,
			Action:    models.AuditRescheduleWithdrawn,
			PolicySnapshot: map[string]any{
				"request_id": current.ID,
			},
			Meta: meta,
		})
		if err != nil {
			return err
		}

		otherID, _ := counterpartyOf(session, actor.Role)
		pending = append(pending, DispatchInput{
			UserID:      otherID,
			Type:        models.NotificationRescheduleWithdrawn,
			Title:       "Reschedule withdrawn",
			Message:     "The reschedule proposal for your session was withdrawn.",
			RelatedID:   &request.ID,
			RelatedType: strPtr("reschedule_request"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchAll(ctx, pending)
	return request, nil
}

func clearPendingReschedule(session *models.Session) {
	session.PendingRescheduleRequestID = nil
	session.PendingRescheduleTime = nil
	session.PendingRescheduleBy = nil
}

func rescheduleResolutionMessage(decision string, request *models.RescheduleRequest) string {
	switch decision {
	case RescheduleDecisionAccept:
		return fmt.Sprintf("Your session was moved to %s.", request.ProposedTime.Format(time.RFC1123))
	case RescheduleDecisionReject:
		return "Your reschedule proposal was declined."
	default:
		return fmt.Sprintf("A counter-proposal was made: %s.", request.ProposedTime.Format(time.RFC1123))
	}
}
