package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"textfx-backend/internal/components/telemetry"
	"textfx-backend/internal/scrapers/textfx"

	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	requests []textfx.GenerationRequest
	result   textfx.GenerationResult
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, req textfx.GenerationRequest) (textfx.GenerationResult, error) {
	f.requests = append(f.requests, req)
	return f.result, f.err
}

func newTestServer(t *testing.T, generator Generator) *httptest.Server {
	mux := http.NewServeMux()
	registerRoutes(mux, generator, telemetry.NewRecorder())
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func decodeResponse(t *testing.T, res *http.Response) Response {
	defer res.Body.Close()
	var out Response
	err := json.NewDecoder(res.Body).Decode(&out)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestGenerateQuery(t *testing.T) {
	generator := &fakeGenerator{result: textfx.GenerationResult{
		Succeeded: true,
		ImageUrl:  "https://photooxy.com/result/a.jpg",
		Strategy:  "direct-scan",
	}}
	server := newTestServer(t, generator)

	query := url.Values{}
	query.Set("url", "https://photooxy.com/effects/neon-123.html")
	query.Add("text", "HELLO")
	query.Add("text", "WORLD")

	res, err := http.Get(server.URL + "/generate?" + query.Encode())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusOK, res.StatusCode)

	out := decodeResponse(t, res)
	require.True(t, out.Status)
	require.Equal(t, "https://photooxy.com/result/a.jpg", out.Result.ImageUrl)
	require.Equal(t, []textfx.GenerationRequest{{
		TargetPageUrl: "https://photooxy.com/effects/neon-123.html",
		Texts:         []string{"HELLO", "WORLD"},
	}}, generator.requests)
}

func TestGenerateJsonBody(t *testing.T) {
	generator := &fakeGenerator{result: textfx.GenerationResult{
		Succeeded:     false,
		FailureReason: textfx.ErrExtractionExhausted.Error(),
	}}
	server := newTestServer(t, generator)

	res, err := http.Post(
		server.URL+"/generate",
		"application/json",
		strings.NewReader(`{"target_page_url":"https://photooxy.com/effects/neon-123.html","texts":["HELLO"]}`),
	)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusOK, res.StatusCode)

	out := decodeResponse(t, res)
	require.False(t, out.Status)
	require.Equal(t, textfx.ErrExtractionExhausted.Error(), out.Message)
	require.Len(t, generator.requests, 1)
}

func TestGenerateBadRequests(t *testing.T) {
	generator := &fakeGenerator{}
	server := newTestServer(t, generator)

	for _, path := range []string{
		"/generate",
		"/generate?url=https://photooxy.com/effects/neon-123.html",
		"/generate?text=HELLO",
	} {
		res, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		out := decodeResponse(t, res)
		require.Equal(t, http.StatusBadRequest, res.StatusCode, path)
		require.False(t, out.Status)
		require.NotEmpty(t, out.Message)
	}

	res, err := http.Post(server.URL+"/generate", "application/json", strings.NewReader(`{"unknown":1}`))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	res.Body.Close()

	require.Empty(t, generator.requests)
}

func TestGeneratePipelineErrors(t *testing.T) {
	testCases := []struct {
		err    error
		status int
	}{
		{
			err:    &textfx.PipelineError{Stage: textfx.STAGE_VALIDATE, Err: textfx.ErrInvalidTargetUrl},
			status: http.StatusBadRequest,
		},
		{
			err: &textfx.PipelineError{
				Stage:       textfx.STAGE_ANALYZE,
				Err:         textfx.ErrFormDiscovery,
				Diagnostics: textfx.Diagnostics{ResponseBytes: 120, FormsFound: 1},
			},
			status: http.StatusBadGateway,
		},
		{
			err:    &textfx.PipelineError{Stage: textfx.STAGE_LOAD, Err: fmt.Errorf("%w: %w", textfx.ErrTransport, context.DeadlineExceeded)},
			status: http.StatusGatewayTimeout,
		},
		{
			err:    &textfx.PipelineError{Stage: textfx.STAGE_EXTRACT, Err: textfx.ErrProcessingFailed},
			status: http.StatusBadGateway,
		},
	}

	for _, testCase := range testCases {
		server := newTestServer(t, &fakeGenerator{err: testCase.err})

		res, err := http.Get(server.URL + "/generate?url=https://photooxy.com/effects/neon-123.html&text=HELLO")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, testCase.status, res.StatusCode)

		out := decodeResponse(t, res)
		require.False(t, out.Status)
		require.Equal(t, testCase.err.Error(), out.Message)
		require.NotEmpty(t, out.Stage)
		require.NotNil(t, out.Diagnostics)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, &fakeGenerator{})

	res, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, decodeResponse(t, res).Status)
}
