package service

import (
	"context"
	"strconv"
	"time"

	"github.com/cuongccna/ProjectBotTrading/internal/biz"
	"github.com/cuongccna/ProjectBotTrading/internal/model"
	pkglog "github.com/cuongccna/ProjectBotTrading/pkg/log"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewReviewService)

// ReviewService exposes the review governance API over HTTP.
// All reviewer-initiated routes read the caller identity from the request
// context injected by the identity middleware.
type ReviewService struct {
	review     *biz.ReviewUsecase
	authorizer *biz.DecisionAuthorizer
	detector   *biz.TriggerDetector
	outcomes   *biz.OutcomeUsecase
	audit      biz.AuditRepo
	logger     *log.Helper
}

// NewReviewService creates a new ReviewService instance.
func NewReviewService(
	review *biz.ReviewUsecase,
	authorizer *biz.DecisionAuthorizer,
	detector *biz.TriggerDetector,
	outcomes *biz.OutcomeUsecase,
	audit biz.AuditRepo,
	logger log.Logger,
) *ReviewService {
	return &ReviewService{
		review:     review,
		authorizer: authorizer,
		detector:   detector,
		outcomes:   outcomes,
		audit:      audit,
		logger:     log.NewHelper(logger),
	}
}

// RegisterHTTPServer mounts the review routes on srv.
func (s *ReviewService) RegisterHTTPServer(srv *http.Server) {
	r := srv.Route("/v1")

	r.POST("/review/signals", s.handleIngestSignals)
	r.POST("/review/events", s.handleCreateManualEvent)
	r.GET("/review/queue", s.handleQueue)
	r.GET("/review/events/{id}", s.handleGetEvent)
	r.GET("/review/events/{id}/history", s.handleGetHistory)
	r.POST("/review/events/{id}/claim", s.handleClaim)
	r.POST("/review/events/{id}/decision", s.handleDecision)
	r.POST("/review/events/{id}/escalate", s.handleEscalate)
	r.POST("/review/events/{id}/annotations", s.handleAnnotate)
	r.GET("/review/stats", s.handleStats)
	r.GET("/review/actions", s.handleActionCatalog)
	r.GET("/review/audit", s.handleAuditQuery)
	r.POST("/review/decisions/{id}/evaluate", s.handleEvaluate)
	r.GET("/review/outcomes/pending", s.handlePendingOutcomes)
	r.GET("/review/reviewers/{id}/violations", s.handleViolations)
}

// reviewerFromContext extracts the caller identity set by the identity
// middleware. Routes that act on events require both headers.
func reviewerFromContext(ctx context.Context) (string, model.Role, error) {
	id := pkglog.GetReviewerID(ctx)
	if id == "" {
		return "", "", kerrors.New(401, "UNAUTHENTICATED", "missing X-Reviewer-Id header")
	}
	role := model.Role(pkglog.GetReviewerRole(ctx))
	if !biz.ValidRole(role) {
		return "", "", kerrors.New(400, "UNKNOWN_ROLE", "missing or unknown X-Reviewer-Role header")
	}
	return id, role, nil
}

func (s *ReviewService) handleIngestSignals(ctx http.Context) error {
	var snap model.SignalSnapshot
	if err := ctx.Bind(&snap); err != nil {
		return err
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		created, err := s.detector.IngestSnapshot(c, &snap)
		if err != nil {
			s.logger.Errorw("msg", "signal ingest failed", "error", err)
			return nil, err
		}
		return &IngestReply{Created: toEventReplies(created)}, nil
	})
	out, err := h(ctx, &snap)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *ReviewService) handleCreateManualEvent(ctx http.Context) error {
	var req ManualEventRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		userID, _, err := reviewerFromContext(c)
		if err != nil {
			return nil, err
		}
		if req.Reason == "" {
			return nil, kerrors.New(400, "INVALID_ARGUMENT", "reason is required")
		}
		ev, err := s.review.CreateManualRequest(c, userID, req.Reason, req.Evidence)
		if err != nil {
			s.logger.Errorw("msg", "manual event creation failed", "reviewer_id", userID, "error", err)
			return nil, err
		}
		s.logger.Infow("msg", "manual review event created", "event_id", ev.ID, "reviewer_id", userID)
		return toEventReply(ev), nil
	})
	out, err := h(ctx, &req)
	if err != nil {
		return err
	}
	return ctx.Result(201, out)
}

func (s *ReviewService) handleQueue(ctx http.Context) error {
	f := queueFilterFromQuery(ctx)

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		events, err := s.review.Queue(c, f)
		if err != nil {
			return nil, err
		}
		return &QueueReply{Events: toEventReplies(events), Total: len(events)}, nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// queueFilterFromQuery parses the queue listing filters. Unknown values
// pass through to storage, which simply matches nothing.
func queueFilterFromQuery(ctx http.Context) model.QueueFilter {
	q := ctx.Query()
	f := model.QueueFilter{
		Priority:    model.Priority(q.Get("priority")),
		TriggerKind: model.TriggerKind(q.Get("kind")),
		OnlyOpen:    q.Get("open") == "true",
	}
	if status := q.Get("status"); status != "" {
		f.Statuses = []model.Status{model.Status(status)}
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		f.Limit = limit
	}
	return f
}

func (s *ReviewService) handleGetEvent(ctx http.Context) error {
	id := ctx.Vars().Get("id")

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		ev, err := s.review.GetEvent(c, id)
		if err != nil {
			return nil, err
		}
		return toEventReply(ev), nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *ReviewService) handleGetHistory(ctx http.Context) error {
	id := ctx.Vars().Get("id")

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		history, err := s.review.GetHistory(c, id)
		if err != nil {
			return nil, err
		}
		return toHistoryReply(history), nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *ReviewService) handleClaim(ctx http.Context) error {
	id := ctx.Vars().Get("id")

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		userID, _, err := reviewerFromContext(c)
		if err != nil {
			return nil, err
		}
		ev, err := s.review.Claim(c, id, userID)
		if err != nil {
			return nil, err
		}
		return toEventReply(ev), nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *ReviewService) handleDecision(ctx http.Context) error {
	id := ctx.Vars().Get("id")
	var req DecisionRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		userID, role, err := reviewerFromContext(c)
		if err != nil {
			return nil, err
		}
		payload, err := decisionPayloadFromRequest(&req)
		if err != nil {
			return nil, err
		}
		decision, err := s.authorizer.AuthorizeAndApply(c, id, userID, role, req.Action, payload)
		if err != nil {
			return nil, err
		}
		return toDecisionReply(decision), nil
	})
	out, err := h(ctx, &req)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

// decisionPayloadFromRequest converts the wire payload, parsing the pause
// duration up front so bound errors stay in the authorizer.
func decisionPayloadFromRequest(req *DecisionRequest) (*biz.DecisionPayload, error) {
	payload := &biz.DecisionPayload{
		MaxDrawdownPct:      req.MaxDrawdownPct,
		PositionSizePct:     req.PositionSizePct,
		NewPositionLimitPct: req.NewPositionLimitPct,
		DataSource:          req.DataSource,
		ReasonCode:          req.ReasonCode,
		Reason:              req.Reason,
		Confidence:          req.Confidence,
	}
	if req.PauseFor != "" {
		d, err := time.ParseDuration(req.PauseFor)
		if err != nil {
			return nil, kerrors.New(400, "INVALID_ARGUMENT", "pause_for must be a duration such as 48h")
		}
		payload.PauseFor = d
	}
	return payload, nil
}

func (s *ReviewService) handleEscalate(ctx http.Context) error {
	id := ctx.Vars().Get("id")
	var req EscalateRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		userID, role, err := reviewerFromContext(c)
		if err != nil {
			return nil, err
		}
		ev, err := s.authorizer.AuthorizeEscalation(c, id, userID, role, req.Reason)
		if err != nil {
			return nil, err
		}
		return toEventReply(ev), nil
	})
	out, err := h(ctx, &req)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *ReviewService) handleAnnotate(ctx http.Context) error {
	id := ctx.Vars().Get("id")
	var req AnnotateRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		userID, role, err := reviewerFromContext(c)
		if err != nil {
			return nil, err
		}
		if req.Text == "" {
			return nil, kerrors.New(400, "INVALID_ARGUMENT", "text is required")
		}
		a, err := s.authorizer.AuthorizeAnnotation(c, id, userID, role, req.Text, req.Tag)
		if err != nil {
			return nil, err
		}
		return toAnnotationReply(a), nil
	})
	out, err := h(ctx, &req)
	if err != nil {
		return err
	}
	return ctx.Result(201, out)
}

func (s *ReviewService) handleStats(ctx http.Context) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		return s.review.Stats(c)
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *ReviewService) handleActionCatalog(ctx http.Context) error {
	allowed, forbidden := biz.ActionCatalog()
	return ctx.Result(200, &CatalogReply{Allowed: allowed, Forbidden: forbidden})
}

func (s *ReviewService) handleAuditQuery(ctx http.Context) error {
	q := ctx.Query()
	f := model.AuditFilter{
		Category: q.Get("category"),
		EventID:  q.Get("event_id"),
		Actor:    q.Get("actor"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		f.Limit = limit
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		entries, err := s.audit.Query(c, f)
		if err != nil {
			return nil, err
		}
		return toAuditReplies(entries), nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *ReviewService) handleEvaluate(ctx http.Context) error {
	id := ctx.Vars().Get("id")
	var req EvaluateRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		userID, _, err := reviewerFromContext(c)
		if err != nil {
			return nil, err
		}
		o, err := s.outcomes.Evaluate(c, id, userID, req.Verdict, req.ImpactUSD, req.Narrative)
		if err != nil {
			return nil, err
		}
		return toOutcomeReply(o), nil
	})
	out, err := h(ctx, &req)
	if err != nil {
		return err
	}
	return ctx.Result(201, out)
}

func (s *ReviewService) handlePendingOutcomes(ctx http.Context) error {
	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		awaiting, err := s.outcomes.ListAwaiting(c)
		if err != nil {
			return nil, err
		}
		replies := make([]*DecisionReply, 0, len(awaiting))
		for _, d := range awaiting {
			replies = append(replies, toDecisionReply(d))
		}
		return replies, nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}

func (s *ReviewService) handleViolations(ctx http.Context) error {
	userID := ctx.Vars().Get("id")

	h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
		count, err := s.authorizer.Violations(c, userID)
		if err != nil {
			return nil, err
		}
		return &ViolationsReply{UserID: userID, Count: count}, nil
	})
	out, err := h(ctx, nil)
	if err != nil {
		return err
	}
	return ctx.Result(200, out)
}
