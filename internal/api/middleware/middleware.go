package middleware

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guardrail"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/rs/zerolog"
)

var ErrBadRequest = errors.New("bad request")

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps an error to the HTTP status the API reports for it.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, guardrail.ErrRailNotFound):
		return http.StatusNotFound
	case errors.Is(err, llm.ErrLLMTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrLLMUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func HandleError(logger *zerolog.Logger, resp *restful.Response, err error, status int) {
	HandleErrorWithID(logger, resp, err, status, "")
}

func HandleErrorWithID(logger *zerolog.Logger, resp *restful.Response, err error, status int, requestID string) {
	if err := resp.WriteHeaderAndEntity(status, ErrorResponse{
		Error:     err.Error(),
		Code:      status,
		RequestID: requestID,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to write error response")
	}
}

// Filters are the container filters shared by every route.
type Filters struct {
	logger *zerolog.Logger
}

func NewFilters(logger *zerolog.Logger) *Filters {
	return &Filters{logger: logger}
}

// Logger logs every request with its status and latency.
func (f *Filters) Logger(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	start := time.Now()
	chain.ProcessFilter(req, resp)

	f.logger.Info().
		Str("method", req.Request.Method).
		Str("path", req.Request.URL.Path).
		Int("status", resp.StatusCode()).
		Dur("duration", time.Since(start)).
		Msg("request handled")
}

// RecoverPanic turns a handler panic into a 500.
func (f *Filters) RecoverPanic(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().
				Interface("panic", r).
				Str("path", req.Request.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic")
			HandleError(f.logger, resp, errors.New("internal server error"), http.StatusInternalServerError)
		}
	}()
	chain.ProcessFilter(req, resp)
}
