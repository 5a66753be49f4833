package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/cat-service/internal/cache"
	"github.com/SAP-F-2025/cat-service/internal/cat"
	"github.com/SAP-F-2025/cat-service/internal/events"
	"github.com/SAP-F-2025/cat-service/internal/irt"
	"github.com/SAP-F-2025/cat-service/internal/models"
	"github.com/SAP-F-2025/cat-service/internal/repositories"
	"github.com/SAP-F-2025/cat-service/internal/validator"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CATService drives adaptive exam sessions
type CATService interface {
	Start(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error)
	Answer(ctx context.Context, req *AnswerRequest) (*AnswerResponse, error)
	Status(ctx context.Context, sessionID string) (*SessionStatusResponse, error)
	Abandon(ctx context.Context, sessionID string) (*SessionStatusResponse, error)
	Finish(ctx context.Context, req *FinishRequest) (*SessionStatusResponse, error)

	// Read-only queries
	GetResults(ctx context.Context, sessionID string) (*SessionResultsResponse, error)
	GetHistory(ctx context.Context, userID string, filters repositories.SessionFilters) (*SessionHistoryResponse, error)
}

// PlanProvider resolves an exam type to its plan
type PlanProvider interface {
	Get(examType string) (cat.ExamPlan, bool)
}

const (
	statusCacheTTL    = 5 * time.Minute
	statusCachePrefix = "cat:status:"
)

type catService struct {
	repo      repositories.Repository
	itemBank  ItemBankService
	plans     PlanProvider
	estimator irt.EstimatorConfig
	cache     cache.CacheService
	publisher events.EventPublisher
	logger    *slog.Logger
	opLogger  *ServiceLogger
	validator *validator.Validator
	now       func() time.Time
}

func NewCATService(
	repo repositories.Repository,
	itemBank ItemBankService,
	plans PlanProvider,
	estimator irt.EstimatorConfig,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
) CATService {
	return &catService{
		repo:      repo,
		itemBank:  itemBank,
		plans:     plans,
		estimator: estimator,
		cache:     cacheService,
		publisher: publisher,
		logger:    logger,
		opLogger:  NewServiceLogger(logger, LogConfig{Service: "cat-service", Component: "session"}),
		validator: validator,
		now:       time.Now,
	}
}

// sessionOutcome carries what a committed transaction needs to announce.
type sessionOutcome struct {
	session   *models.Session
	nextItem  *models.Item
	exhausted *cat.ItemBankExhaustedError
}

// ===== CORE SESSION OPERATIONS =====

func (s *catService) Start(ctx context.Context, req *StartSessionRequest) (resp *StartSessionResponse, err error) {
	op := s.opLogger.WithOperation(ctx, "start_session", req.UserID)
	var sessionID string
	defer func() { op.LogResult(sessionID, "session", err) }()

	if err = s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	plan, ok := s.plans.Get(req.ExamType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExamType, req.ExamType)
	}

	start := s.now()
	session := &models.Session{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		ExamType:        req.ExamType,
		Status:          models.SessionInProgress,
		AbilityEstimate: 0,
		StandardError:   s.estimator.MaxStandardError,
		ContentCoverage: datatypes.NewJSONType(map[string]int(cat.NewCoverage(plan))),
		StartTime:       start,
	}
	session.PassingProbability = irt.PassingProbability(session.AbilityEstimate, session.StandardError, plan.PassingStandard)
	sessionID = session.ID

	var outcome sessionOutcome
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Session().Create(ctx, tx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		outcome, err = s.issueNextItem(ctx, tx, session, plan, nil)
		if err != nil {
			return err
		}
		return s.repo.Session().Update(ctx, tx, session)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, outcome)
	if outcome.exhausted != nil {
		return nil, outcome.exhausted
	}

	s.publish(ctx, events.NewSessionStartedEvent(session.ID, session.UserID, session.ExamType, outcome.nextItem.ID, start))

	return &StartSessionResponse{
		SessionID: session.ID,
		ExamType:  session.ExamType,
		FirstItem: toExamineeItem(outcome.nextItem),
	}, nil
}

func (s *catService) Answer(ctx context.Context, req *AnswerRequest) (resp *AnswerResponse, err error) {
	op := s.opLogger.WithOperation(ctx, "answer", "")
	defer func() { op.LogResult(req.SessionID, "session", err) }()

	if err = s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.SelectedOption == nil && req.IsCorrect == nil {
		return nil, ErrMalformedAnswer
	}

	var outcome sessionOutcome
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		session, err := s.lockSession(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if session.Status != models.SessionInProgress {
			return ErrSessionNotActive
		}
		if session.PendingItemID == nil || *session.PendingItemID != req.ItemID {
			return ErrItemMismatch
		}

		plan, ok := s.plans.Get(session.ExamType)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownExamType, session.ExamType)
		}

		item, err := s.repo.Item().GetByID(ctx, tx, req.ItemID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to get item: %w", err)
		}
		correct, err := scoreAnswer(item, req)
		if err != nil {
			return err
		}

		history, err := s.repo.Session().GetResponses(ctx, tx, session.ID)
		if err != nil {
			return fmt.Errorf("failed to load responses: %w", err)
		}

		params := item.Params()
		observations := make([]irt.Observation, 0, len(history)+1)
		administered := make([]uint, 0, len(history)+1)
		for i := range history {
			observations = append(observations, history[i].Observation())
			administered = append(administered, history[i].ItemID)
		}
		observations = append(observations, irt.Observation{Params: params, Correct: correct})
		administered = append(administered, item.ID)

		estimate := irt.Estimate(observations, session.AbilityEstimate, s.estimator)
		if estimate.LowConfidence {
			s.logger.Warn("Ability estimate did not converge",
				"session_id", session.ID,
				"iterations", estimate.Iterations,
				"theta", estimate.Theta)
		}

		coverage := cat.Coverage(session.Coverage()).Clone()
		coverage[item.ContentDomain]++

		answeredAt := s.now()
		response := &models.Response{
			SessionID:      session.ID,
			Sequence:       session.ItemsAnswered + 1,
			ItemID:         item.ID,
			ContentDomain:  item.ContentDomain,
			IsCorrect:      correct,
			ResponseTimeMs: req.ResponseTimeMs,
			AnsweredAt:     answeredAt,
			Discrimination: params.Discrimination,
			Difficulty:     params.Difficulty,
			Guessing:       params.Guessing,
			ThetaAfter:     estimate.Theta,
			SEAfter:        estimate.StandardError,
		}
		if err := s.repo.Session().AppendResponse(ctx, tx, response); err != nil {
			return fmt.Errorf("failed to record response: %w", err)
		}

		session.ItemsAnswered = response.Sequence
		session.AbilityEstimate = estimate.Theta
		session.StandardError = estimate.StandardError
		session.LowConfidence = estimate.LowConfidence
		session.PassingProbability = irt.PassingProbability(estimate.Theta, estimate.StandardError, plan.PassingStandard)
		session.ContentCoverage = datatypes.NewJSONType(map[string]int(coverage))
		session.PendingItemID = nil

		decision := cat.ShouldStop(plan, cat.State{
			ItemsAnswered: session.ItemsAnswered,
			Theta:         estimate.Theta,
			StandardError: estimate.StandardError,
			Coverage:      coverage,
		})
		if decision.Stop {
			s.complete(session, decision.Verdict, decision.Reason)
			outcome = sessionOutcome{session: session}
		} else {
			outcome, err = s.issueNextItem(ctx, tx, session, plan, administered)
			if err != nil {
				return err
			}
		}

		return s.repo.Session().Update(ctx, tx, session)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, outcome)
	if outcome.exhausted != nil {
		return nil, outcome.exhausted
	}

	session := outcome.session
	resp = &AnswerResponse{
		SessionID:     session.ID,
		ItemsAnswered: session.ItemsAnswered,
	}
	if session.Status == models.SessionCompleted {
		resp.Completed = true
		resp.Verdict = session.Verdict
		resp.StopReason = session.StopReason
		resp.FinalAbility = &session.AbilityEstimate
		resp.StandardError = &session.StandardError
		resp.PassingProbability = &session.PassingProbability
		return resp, nil
	}
	resp.NextItem = toExamineeItem(outcome.nextItem)
	return resp, nil
}

// Status returns a snapshot without side effects on the session.
func (s *catService) Status(ctx context.Context, sessionID string) (*SessionStatusResponse, error) {
	var cached SessionStatusResponse
	if err := s.cache.Get(ctx, statusCachePrefix+sessionID, &cached); err == nil {
		return &cached, nil
	}

	session, err := s.repo.Session().GetByID(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	// a snapshot written by a concurrent commit is newer than this read
	status := toSessionStatus(session)
	if _, err := s.cache.SetIfAbsent(ctx, statusCachePrefix+sessionID, status, statusCacheTTL); err != nil {
		s.logger.Warn("Failed to cache session status", "session_id", sessionID, "error", err)
	}
	return &status, nil
}

// Abandon ends a session at the examinee's request. Already terminal
// sessions are returned unchanged.
func (s *catService) Abandon(ctx context.Context, sessionID string) (resp *SessionStatusResponse, err error) {
	op := s.opLogger.WithOperation(ctx, "abandon", "")
	defer func() { op.LogResult(sessionID, "session", err) }()

	var outcome sessionOutcome
	var changed bool
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		session, err := s.lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		outcome.session = session
		if session.Status.IsTerminal() {
			return nil
		}

		end := s.now()
		session.Status = models.SessionAbandoned
		session.StopReason = string(cat.ReasonAbandoned)
		session.PendingItemID = nil
		session.EndTime = &end
		changed = true
		return s.repo.Session().Update(ctx, tx, session)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.afterCommit(ctx, outcome)
	}
	status := toSessionStatus(outcome.session)
	return &status, nil
}

// Finish forces a session to end. Mode abandon behaves like Abandon; mode
// evaluate scores the session as it stands, inconclusive below the minimum
// length.
func (s *catService) Finish(ctx context.Context, req *FinishRequest) (resp *SessionStatusResponse, err error) {
	if err = s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Mode == FinishModeAbandon {
		return s.Abandon(ctx, req.SessionID)
	}

	op := s.opLogger.WithOperation(ctx, "finish", "")
	defer func() { op.LogResult(req.SessionID, "session", err) }()

	var outcome sessionOutcome
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		session, err := s.lockSession(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if session.Status != models.SessionInProgress {
			return ErrSessionNotActive
		}
		plan, ok := s.plans.Get(session.ExamType)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownExamType, session.ExamType)
		}

		verdict := cat.VerdictInconclusive
		if session.ItemsAnswered >= plan.MinItems {
			verdict = plan.VerdictFor(session.AbilityEstimate)
		}
		s.complete(session, verdict, cat.ReasonForced)
		outcome.session = session
		return s.repo.Session().Update(ctx, tx, session)
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, outcome)
	status := toSessionStatus(outcome.session)
	return &status, nil
}

// ===== QUERIES =====

func (s *catService) GetResults(ctx context.Context, sessionID string) (*SessionResultsResponse, error) {
	session, err := s.repo.Session().GetByIDWithResponses(ctx, nil, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !session.Status.IsTerminal() {
		return nil, ErrSessionNotEnded
	}

	return &SessionResultsResponse{
		SessionStatusResponse: toSessionStatus(session),
		Responses:             toResponseSummaries(session.Responses),
	}, nil
}

func (s *catService) GetHistory(ctx context.Context, userID string, filters repositories.SessionFilters) (*SessionHistoryResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, NewValidationError("user_id", "is required", userID)
	}

	sessions, total, err := s.repo.Session().ListByUser(ctx, nil, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	out := make([]SessionStatusResponse, len(sessions))
	for i, session := range sessions {
		out[i] = toSessionStatus(session)
	}
	return &SessionHistoryResponse{
		Sessions: out,
		Total:    total,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	}, nil
}

// ===== HELPERS =====

func (s *catService) lockSession(ctx context.Context, tx *gorm.DB, sessionID string) (*models.Session, error) {
	session, err := s.repo.Session().GetByIDForUpdate(ctx, tx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// issueNextItem selects the next item and makes it the pending one. When the
// bank cannot serve the plan the session is closed as inconclusive instead.
func (s *catService) issueNextItem(ctx context.Context, tx *gorm.DB, session *models.Session, plan cat.ExamPlan, administered []uint) (sessionOutcome, error) {
	selector := cat.NewSelector(s.itemBank.Source(tx))
	next, err := selector.SelectNext(ctx, session.AbilityEstimate, plan, cat.Coverage(session.Coverage()), administered)
	if err != nil {
		var exhausted *cat.ItemBankExhaustedError
		if errors.As(err, &exhausted) {
			exhausted.SessionID = session.ID
			s.complete(session, cat.VerdictInconclusive, cat.ReasonItemBankExhausted)
			return sessionOutcome{session: session, exhausted: exhausted}, nil
		}
		return sessionOutcome{}, err
	}

	item, err := s.repo.Item().GetByID(ctx, tx, next.ID)
	if err != nil {
		return sessionOutcome{}, fmt.Errorf("failed to load selected item: %w", err)
	}
	if err := s.repo.Item().IncrementExposure(ctx, tx, item.ID); err != nil {
		return sessionOutcome{}, fmt.Errorf("failed to record exposure: %w", err)
	}

	session.PendingItemID = &item.ID
	return sessionOutcome{session: session, nextItem: item}, nil
}

func (s *catService) complete(session *models.Session, verdict cat.Verdict, reason cat.StopReason) {
	end := s.now()
	session.Status = models.SessionCompleted
	session.Verdict = string(verdict)
	session.StopReason = string(reason)
	session.PendingItemID = nil
	session.EndTime = &end
}

// afterCommit runs the side effects that must not roll back with the
// transaction: the status snapshot, the windowed exposure counter and events.
func (s *catService) afterCommit(ctx context.Context, outcome sessionOutcome) {
	session := outcome.session
	if session == nil {
		return
	}

	key := statusCachePrefix + session.ID
	if err := s.cache.Set(ctx, key, toSessionStatus(session), statusCacheTTL); err != nil {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to invalidate session status", "session_id", session.ID, "error", err)
		}
	}

	if outcome.nextItem != nil {
		if err := s.itemBank.RecordExposure(ctx, outcome.nextItem.ID); err != nil {
			s.logger.Warn("Failed to record windowed exposure", "item_id", outcome.nextItem.ID, "error", err)
		}
	}

	if outcome.exhausted != nil {
		s.opLogger.LogOperationalAlert(ctx, "item bank exhausted",
			slog.String("session_id", session.ID),
			slog.String("exam_type", session.ExamType),
			slog.String("content_domain", outcome.exhausted.Domain),
			slog.Int("items_answered", session.ItemsAnswered))
		s.publish(ctx, events.NewItemBankExhaustedEvent(session.ID, session.ExamType, outcome.exhausted.Domain, session.ItemsAnswered))
	}

	switch session.Status {
	case models.SessionCompleted:
		s.publish(ctx, events.NewSessionCompletedEvent(events.SessionCompletedEvent{
			SessionID:          session.ID,
			UserID:             session.UserID,
			ExamType:           session.ExamType,
			Verdict:            session.Verdict,
			StopReason:         session.StopReason,
			AbilityEstimate:    session.AbilityEstimate,
			StandardError:      session.StandardError,
			PassingProbability: session.PassingProbability,
			ItemsAnswered:      session.ItemsAnswered,
			CompletedAt:        s.now(),
		}))
	case models.SessionAbandoned:
		s.publish(ctx, events.NewSessionAbandonedEvent(session.ID, session.UserID, session.ExamType, session.ItemsAnswered, s.now()))
	}
}

func (s *catService) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

// scoreAnswer grades the selected option against the key, falling back to
// the caller's own scoring when no option was sent.
func scoreAnswer(item *models.Item, req *AnswerRequest) (bool, error) {
	if req.SelectedOption != nil {
		selected := strings.TrimSpace(*req.SelectedOption)
		if selected == "" {
			return false, ErrMalformedAnswer
		}
		return strings.EqualFold(selected, item.CorrectAnswer), nil
	}
	if req.IsCorrect != nil {
		return *req.IsCorrect, nil
	}
	return false, ErrMalformedAnswer
}
