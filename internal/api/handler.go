package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

const Version = "1.0.0"

// Auditor persists decisions. Failures are logged, never returned to the
// client.
type Auditor interface {
	Record(ctx context.Context, source string, result models.GuardrailResult) error
}

type Handler struct {
	guard   guardrail.Guard
	auditor Auditor
	logger  *zerolog.Logger
}

// NewHandler creates the API handler. auditor may be nil.
func NewHandler(guard guardrail.Guard, auditor Auditor, logger *zerolog.Logger) *Handler {
	return &Handler{
		guard:   guard,
		auditor: auditor,
		logger:  logger,
	}
}

// POST /api/v1/guard
// Body: GuardRequest
// Returns: GuardrailResult
func (h *Handler) Guard(req *restful.Request, resp *restful.Response) {
	var guardRequest models.GuardRequest
	if err := req.ReadEntity(&guardRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(h.logger, resp, fmt.Errorf("%w: %v", middleware.ErrBadRequest, err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(guardRequest.Prompt) == "" {
		middleware.HandleError(h.logger, resp, fmt.Errorf("%w: prompt is required", middleware.ErrBadRequest), http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("event_id", guardRequest.EventID).
		Msg("Start guardrail run")

	ctx := req.Request.Context()
	result, err := h.guard.ProcessRequest(ctx, guardRequest)
	h.audit(ctx, result)
	if err != nil {
		h.logger.Error().Err(err).Str("request_id", result.RequestID).Msg("Guardrail run failed")
		middleware.HandleErrorWithID(h.logger, resp, err, middleware.StatusFor(err), result.RequestID)
		return
	}

	h.logger.Info().
		Str("request_id", result.RequestID).
		Str("decision", string(result.Decision)).
		Msg("Guardrail run complete")

	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// POST /api/v1/check/input
func (h *Handler) CheckInput(req *restful.Request, resp *restful.Response) {
	h.checkText(req, resp, h.guard.CheckInput)
}

// POST /api/v1/check/output
func (h *Handler) CheckOutput(req *restful.Request, resp *restful.Response) {
	h.checkText(req, resp, h.guard.CheckOutput)
}

// POST /api/v1/rails/{rail_name}/check
func (h *Handler) CheckRail(req *restful.Request, resp *restful.Response) {
	railName := req.PathParameter("rail_name")
	h.checkText(req, resp, func(ctx context.Context, text string) (models.GuardrailResult, error) {
		return h.guard.CheckRail(ctx, railName, text)
	})
}

func (h *Handler) checkText(req *restful.Request, resp *restful.Response, check func(context.Context, string) (models.GuardrailResult, error)) {
	var textRequest models.TextRequest
	if err := req.ReadEntity(&textRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(h.logger, resp, fmt.Errorf("%w: %v", middleware.ErrBadRequest, err), http.StatusBadRequest)
		return
	}

	ctx := req.Request.Context()
	result, err := check(ctx, textRequest.Text)
	if err != nil {
		h.logger.Error().Err(err).Str("path", req.Request.URL.Path).Msg("Check failed")
		middleware.HandleError(h.logger, resp, err, middleware.StatusFor(err))
		return
	}
	if textRequest.EventID != "" {
		result.RequestID = textRequest.EventID
	}
	h.audit(ctx, result)

	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// GET /api/v1/rails
func (h *Handler) ListRails(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, RailsResponse{Rails: h.guard.Rails()})
}

// Health handler GET API /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	healthResponse := HealthResponse{
		Status:  "ok",
		Version: Version,
		Rails:   len(h.guard.Rails()),
	}

	resp.WriteHeaderAndEntity(http.StatusOK, healthResponse)
}

func (h *Handler) audit(ctx context.Context, result models.GuardrailResult) {
	if h.auditor == nil || result.RequestID == "" {
		return
	}
	if err := h.auditor.Record(ctx, "api", result); err != nil {
		h.logger.Warn().Err(err).Str("request_id", result.RequestID).Msg("Failed to store audit record")
	}
}
