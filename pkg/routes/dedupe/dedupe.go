package dedupe

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/utils"
)

type Service interface {
	ForcePair(ctx context.Context, id1, id2 int64) (*models.DedupeCandidate, error)
	BulkNormalize(ctx context.Context, afterID int64, limit int) (*models.NormalizeResult, error)
	RunDueScoring(ctx context.Context, source dedupe.PairSource) (*models.ScoringResult, error)
	GetCandidate(ctx context.Context, id string) (*models.DedupeCandidate, error)
	ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]models.DedupeCandidate, error)
	ApproveCandidate(ctx context.Context, id, reviewer string) (*models.DedupeCandidate, error)
	RejectCandidate(ctx context.Context, id, reviewer string) (*models.DedupeCandidate, error)
	Config() models.DedupeConfig
	UpdateConfig(ctx context.Context, config models.DedupeConfig) (models.DedupeConfig, error)
}

type Recorder interface {
	RecordMerge(ctx context.Context, req models.MergeRequest) (*models.DedupeMerge, error)
	GetMerge(ctx context.Context, id string) (*models.DedupeMerge, error)
	ListMerges(ctx context.Context, contactID int64, limit int) ([]models.DedupeMerge, error)
	ResolveSurvivor(ctx context.Context, contactID int64) (int64, error)
}

type Handler struct {
	service  Service
	recorder Recorder
}

func NewHandler(service Service, recorder Recorder) *Handler {
	return &Handler{
		service:  service,
		recorder: recorder,
	}
}

// Register registers dedupe routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/force-pair", h.ForcePair)
	g.POST("/normalize", h.Normalize)
	g.POST("/score", h.Score)

	g.GET("/candidates", h.ListCandidates)
	g.GET("/candidates/:id", h.GetCandidate)
	g.POST("/candidates/:id/approve", h.ApproveCandidate)
	g.POST("/candidates/:id/reject", h.RejectCandidate)

	g.POST("/merges", h.RecordMerge)
	g.GET("/merges", h.ListMerges)
	g.GET("/merges/:id", h.GetMerge)
	g.GET("/contacts/:id/survivor", h.GetSurvivor)

	g.GET("/config", h.GetConfig)
	g.PUT("/config", h.UpdateConfig)
}

// ForcePair scores two contacts on demand
func (h *Handler) ForcePair(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.ForcePair")
	defer span.End()

	req, err := utils.BindRequest[models.ForcePairRequest](c)
	if err != nil {
		return err
	}
	id1, err := dedupe.ParseContactID(string(req.ContactID1))
	if err != nil {
		return err
	}
	id2, err := dedupe.ParseContactID(string(req.ContactID2))
	if err != nil {
		return err
	}

	candidate, err := h.service.ForcePair(ctx, id1, id2)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, candidate)
}

// Normalize runs one page of bulk normalization
func (h *Handler) Normalize(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.Normalize")
	defer span.End()

	req, err := utils.BindRequest[models.NormalizeRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.BulkNormalize(ctx, req.AfterID, req.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Score scores the supplied pairs
func (h *Handler) Score(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.Score")
	defer span.End()

	req, err := utils.BindRequest[models.ScoreRequest](c)
	if err != nil {
		return err
	}

	result, err := h.service.RunDueScoring(ctx, dedupe.PairList(req.Pairs))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListCandidates(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.ListCandidates")
	defer span.End()

	filter, err := parseCandidateFilter(c)
	if err != nil {
		return err
	}

	candidates, err := h.service.ListCandidates(ctx, filter)
	if err != nil {
		return err
	}
	if candidates == nil {
		candidates = []models.DedupeCandidate{}
	}
	return c.JSON(http.StatusOK, candidates)
}

func (h *Handler) GetCandidate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.GetCandidate")
	defer span.End()

	candidate, err := h.service.GetCandidate(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, candidate)
}

// ApproveCandidate confirms a candidate as a duplicate
func (h *Handler) ApproveCandidate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.ApproveCandidate")
	defer span.End()

	candidate, err := h.service.ApproveCandidate(ctx, c.Param("id"), appctx.GetReviewer(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, candidate)
}

// RejectCandidate marks a candidate as not a duplicate
func (h *Handler) RejectCandidate(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.RejectCandidate")
	defer span.End()

	candidate, err := h.service.RejectCandidate(ctx, c.Param("id"), appctx.GetReviewer(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, candidate)
}

// RecordMerge records a merge performed by the CRM
func (h *Handler) RecordMerge(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.RecordMerge")
	defer span.End()

	var req models.MergeRequest
	if err := c.Bind(&req); err != nil {
		return dedupeerrors.InvalidInput("invalid request: %v", err)
	}
	if req.PerformedBy == "" {
		req.PerformedBy = appctx.GetReviewer(ctx)
	}

	merge, err := h.recorder.RecordMerge(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, merge)
}

func (h *Handler) GetMerge(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.GetMerge")
	defer span.End()

	merge, err := h.recorder.GetMerge(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, merge)
}

func (h *Handler) ListMerges(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.ListMerges")
	defer span.End()

	contactID, err := dedupe.ParseContactID(c.QueryParam("contact_id"))
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	merges, err := h.recorder.ListMerges(ctx, contactID, limit)
	if err != nil {
		return err
	}
	if merges == nil {
		merges = []models.DedupeMerge{}
	}
	return c.JSON(http.StatusOK, merges)
}

// GetSurvivor resolves which contact a merged contact now lives on
func (h *Handler) GetSurvivor(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.GetSurvivor")
	defer span.End()

	contactID, err := dedupe.ParseContactID(c.Param("id"))
	if err != nil {
		return err
	}

	survivorID, err := h.recorder.ResolveSurvivor(ctx, contactID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{
		"contact_id":  contactID,
		"survivor_id": survivorID,
	})
}

func (h *Handler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Config())
}

// UpdateConfig swaps in new weights and thresholds for later scoring passes
func (h *Handler) UpdateConfig(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "dedupe_handler.UpdateConfig")
	defer span.End()

	var config models.DedupeConfig
	if err := c.Bind(&config); err != nil {
		return dedupeerrors.InvalidInput("invalid request: %v", err)
	}

	if _, err := h.service.UpdateConfig(ctx, config); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, config)
}

func parseCandidateFilter(c echo.Context) (models.CandidateFilter, error) {
	filter := models.CandidateFilter{
		Status: models.CandidateStatus(c.QueryParam("status")),
	}

	if raw := c.QueryParam("min_score"); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, dedupeerrors.InvalidInput("min_score %q is not a number", raw)
		}
		filter.MinScore = &minScore
	}
	if raw := c.QueryParam("contact_id"); raw != "" {
		contactID, err := dedupe.ParseContactID(raw)
		if err != nil {
			return filter, err
		}
		filter.ContactID = contactID
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return filter, dedupeerrors.InvalidInput("limit %q is not a number", raw)
		}
		filter.Limit = limit
	}

	if _, err := utils.Validate(filter); err != nil {
		return filter, dedupeerrors.InvalidInput("%v", err)
	}
	return filter, nil
}
