package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"textfx-backend/internal/components/telemetry"
	"textfx-backend/internal/scrapers/textfx"
)

const (
	report_handler_decode = "handler.decode"
	report_handler_encode = "handler.encode"
)

// maxRequestBytes bounds POST /generate bodies.
const maxRequestBytes = 64 << 10

type Generator interface {
	Generate(ctx context.Context, req textfx.GenerationRequest) (textfx.GenerationResult, error)
}

type Response struct {
	Status      bool                     `json:"status"`
	Message     string                   `json:"message,omitempty"`
	Stage       textfx.Stage             `json:"stage,omitempty"`
	Diagnostics *textfx.Diagnostics      `json:"diagnostics,omitempty"`
	Result      *textfx.GenerationResult `json:"result,omitempty"`
}

func registerRoutes(mux *http.ServeMux, generator Generator, tel telemetry.API) {
	h := handler{generator: generator, tel: telemetry.NewScopedAPI("textfx-server", tel)}
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /generate", h.generate)
	mux.HandleFunc("POST /generate", h.generate)
}

type handler struct {
	generator Generator
	tel       telemetry.API
}

func (h handler) healthz(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, Response{Status: true, Message: "ok"})
}

func (h handler) decode(w http.ResponseWriter, r *http.Request) (textfx.GenerationRequest, error) {
	if r.Method == http.MethodGet {
		query := r.URL.Query()
		return textfx.GenerationRequest{
			TargetPageUrl: query.Get("url"),
			Texts:         query["text"],
		}, nil
	}

	var req textfx.GenerationRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	err := decoder.Decode(&req)
	if err != nil {
		return req, fmt.Errorf("decode request body: %w", err)
	}
	return req, nil
}

func (h handler) generate(w http.ResponseWriter, r *http.Request) {
	req, err := h.decode(w, r)
	if err != nil {
		h.tel.ReportWarning(report_handler_decode, err)
		h.write(w, http.StatusBadRequest, Response{Message: err.Error()})
		return
	}
	if req.TargetPageUrl == "" {
		h.write(w, http.StatusBadRequest, Response{Message: "missing effect page url"})
		return
	}
	if len(req.Texts) == 0 {
		h.write(w, http.StatusBadRequest, Response{Message: "missing text"})
		return
	}

	res, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.write(w, statusOf(err), failureResponse(err))
		return
	}

	out := Response{Status: res.Succeeded, Result: &res}
	if !res.Succeeded {
		out.Message = res.FailureReason
	}
	h.write(w, http.StatusOK, out)
}

// statusOf maps a pipeline error to the status returned to callers, failures caused by the
// provider are reported as a bad gateway.
func statusOf(err error) int {
	switch {
	case errors.Is(err, textfx.ErrInvalidTargetUrl):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, textfx.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, textfx.ErrUnexpectedStatus),
		errors.Is(err, textfx.ErrFormDiscovery),
		errors.Is(err, textfx.ErrProcessingFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func failureResponse(err error) Response {
	out := Response{Message: err.Error()}
	var pipelineErr *textfx.PipelineError
	if errors.As(err, &pipelineErr) {
		out.Stage = pipelineErr.Stage
		diagnostics := pipelineErr.Diagnostics
		out.Diagnostics = &diagnostics
	}
	return out
}

func (h handler) write(w http.ResponseWriter, status int, res Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(res)
	if err != nil {
		h.tel.ReportWarning(report_handler_encode, err)
	}
}
