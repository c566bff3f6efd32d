package textfx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"textfx-backend/internal/components/assert"
	"textfx-backend/internal/components/chrono"
	"textfx-backend/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("textfx.scrapers.textfx")
var meter = otel.Meter("textfx.scrapers.textfx")
var generationCounter, _ = meter.Int64Counter(
	"generations",
	metric.WithDescription("Pipeline runs by outcome, strategy and failed stage."),
)

const (
	report_generator_generate = "generate"
	report_generator_inspect  = "inspect"
	report_generator_outcome  = "outcome"
)

// Generator runs text effect generations against the provider. It holds no per-run state
// so a single Generator can serve concurrent calls.
type Generator struct {
	cfg        Config
	tel        telemetry.API
	clock      chrono.API
	strategies []strategy
}

func NewGenerator(cfg Config, tel telemetry.API, clock chrono.API) (*Generator, error) {
	assert.NotNil(tel)
	assert.NotNil(clock)

	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if cfg.ProviderHost == "" {
		return nil, fmt.Errorf("provider host must not be empty")
	}

	strategies := defaultStrategies()
	assert.NotEmpty(strategies)

	return &Generator{
		cfg:        cfg,
		tel:        telemetry.NewScopedAPI("textfx", tel),
		clock:      clock,
		strategies: strategies,
	}, nil
}

// run is the state of a pipeline run that outlives a single stage.
type run struct {
	*Generator
	target      *url.URL
	session     *session
	diagnostics Diagnostics
}

func (r *run) fail(span trace.Span, stage Stage, link string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return &PipelineError{
		Stage:       stage,
		Url:         link,
		Diagnostics: r.diagnostics,
		Err:         err,
	}
}

func (g *Generator) start(ctx context.Context, targetUrl string, texts []string) (*run, error) {
	target, err := GenerationRequest{TargetPageUrl: targetUrl, Texts: texts}.Validate(g.cfg.ProviderHost)
	if err != nil {
		return nil, &PipelineError{Stage: STAGE_VALIDATE, Url: targetUrl, Err: err}
	}
	_, err = EffectIdFromUrl(target)
	if err != nil {
		return nil, &PipelineError{Stage: STAGE_VALIDATE, Url: targetUrl, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &PipelineError{Stage: STAGE_LOAD, Url: targetUrl, Err: transportError(err)}
	}
	return &run{
		Generator: g,
		target:    target,
		session:   newSession(g.cfg, target, g.tel),
	}, nil
}

// loadAndAnalyze is the part of the pipeline shared by Generate and Inspect.
func (r *run) loadAndAnalyze(ctx context.Context) (Analysis, error) {
	loadCtx, loadSpan := tracer.Start(ctx, "load")
	loaded, err := r.session.loadPage(loadCtx, r.cfg.LoadTimeout.Std())
	if err != nil {
		err = r.fail(loadSpan, STAGE_LOAD, r.target.String(), err)
		loadSpan.End()
		return Analysis{}, err
	}
	loadSpan.SetAttributes(
		attribute.Int("status", loaded.status),
		attribute.Int("bytes", len(loaded.body)),
	)
	loadSpan.End()
	r.diagnostics = loaded.diagnostics()

	_, analyzeSpan := tracer.Start(ctx, "analyze")
	defer analyzeSpan.End()

	effectId, _ := EffectIdFromUrl(r.target)
	analysis, err := analyzePage(loaded.doc, r.target, effectId)
	if err != nil {
		return analysis, r.fail(analyzeSpan, STAGE_ANALYZE, r.diagnostics.FinalUrl, err)
	}
	if r.cfg.RequireProcessingServer && analysis.Parameters.ProcessingServerId == "" {
		err = fmt.Errorf("%w: page exposes no processing server id", ErrFormDiscovery)
		return analysis, r.fail(analyzeSpan, STAGE_ANALYZE, r.diagnostics.FinalUrl, err)
	}

	analyzeSpan.SetAttributes(
		attribute.String("action", analysis.Form.Action.String()),
		attribute.Int("fields", len(analysis.Form.Fields)),
		attribute.Bool("synthesized", analysis.Form.Synthesized),
		attribute.Bool("processing_server", analysis.Parameters.ProcessingServerId != ""),
	)
	return analysis, nil
}

// Generate runs the whole pipeline for one request. A returned error is always a
// *PipelineError. Not finding an image is not an error, it is reported through
// GenerationResult.Succeeded and FailureReason.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.OverallTimeout.Std())
	defer cancel()

	ctx, span := tracer.Start(ctx, "Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("target", req.TargetPageUrl),
		attribute.Int("texts", len(req.Texts)),
	)

	g.tel.ReportDebug(report_generator_generate, req.TargetPageUrl, len(req.Texts))

	r, err := g.start(ctx, req.TargetPageUrl, req.Texts)
	if err != nil {
		return GenerationResult{}, g.finish(span, err)
	}

	analysis, err := r.loadAndAnalyze(ctx)
	if err != nil {
		return GenerationResult{}, g.finish(span, err)
	}

	submitCtx, submitSpan := tracer.Start(ctx, "submit")
	response, err := r.session.submit(submitCtx, analysis, req.Texts, g.cfg.TextAliases, g.cfg.SubmitTimeout.Std())
	if err != nil {
		err = r.fail(submitSpan, STAGE_SUBMIT, analysis.Form.Action.String(), err)
		submitSpan.End()
		return GenerationResult{}, g.finish(span, err)
	}
	submitSpan.SetAttributes(attribute.Int("status", response.status))
	submitSpan.End()
	r.diagnostics = response.diagnostics()

	var warnings []string
	if response.status >= 400 {
		warnings = append(warnings, fmt.Sprintf("submission returned status %d", response.status))
	}

	extractCtx, extractSpan := tracer.Start(ctx, "extract")
	e := &extraction{
		session:  r.session,
		cfg:      g.cfg,
		clock:    g.clock,
		tel:      g.tel,
		texts:    req.Texts,
		params:   analysis.Parameters,
		response: response,
		warnings: warnings,
	}
	found, strategyName, ok, err := e.run(extractCtx, g.strategies)
	if err != nil {
		err = r.fail(extractSpan, STAGE_EXTRACT, r.diagnostics.FinalUrl, err)
		extractSpan.End()
		return GenerationResult{}, g.finish(span, err)
	}
	extractSpan.SetAttributes(attribute.String("strategy", strategyName))
	extractSpan.End()

	if !ok {
		result := GenerationResult{
			Succeeded:     false,
			FailureReason: ErrExtractionExhausted.Error(),
			Warnings:      e.warnings,
			Diagnostics:   r.diagnostics,
		}
		g.tel.ReportWarning(report_generator_outcome, ErrExtractionExhausted, req.TargetPageUrl)
		span.SetAttributes(attribute.Bool("succeeded", false))
		generationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "exhausted")))
		return result, nil
	}

	validateCtx, validateSpan := tracer.Start(ctx, "validate")
	checked := r.session.validate(validateCtx, found, g.cfg)
	validateSpan.SetAttributes(
		attribute.String("content_type", checked.contentType),
		attribute.Int64("content_length", checked.contentLength),
		attribute.Bool("likely_generated", checked.isLikelyGenerated),
	)
	validateSpan.End()

	result := GenerationResult{
		Succeeded:         true,
		ImageUrl:          found.Url,
		ContentType:       checked.contentType,
		IsLikelyGenerated: checked.isLikelyGenerated,
		Strategy:          strategyName,
		Warnings:          append(e.warnings, checked.warnings...),
		Diagnostics:       r.diagnostics,
	}
	if checked.contentLength > 0 {
		result.ContentLength = checked.contentLength
	}

	span.SetAttributes(
		attribute.Bool("succeeded", true),
		attribute.String("strategy", strategyName),
	)
	g.tel.ReportDebug(report_generator_outcome, strategyName, found.Url, checked.isLikelyGenerated)
	generationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "succeeded"),
		attribute.String("strategy", strategyName),
		attribute.Bool("likely_generated", checked.isLikelyGenerated),
	))
	return result, nil
}

func (g *Generator) finish(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var pipelineErr *PipelineError
	if errors.As(err, &pipelineErr) {
		g.tel.ReportBroken(report_generator_outcome, err, string(pipelineErr.Stage))
		generationCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("outcome", "failed"),
			attribute.String("stage", string(pipelineErr.Stage)),
		))
	}
	return err
}

// Inspection is what the pipeline sees on an effect page before submitting anything.
type Inspection struct {
	Analysis    Analysis
	Diagnostics Diagnostics
}

// Inspect loads and analyzes an effect page without submitting the form.
func (g *Generator) Inspect(ctx context.Context, targetUrl string) (Inspection, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.OverallTimeout.Std())
	defer cancel()

	ctx, span := tracer.Start(ctx, "Inspect")
	defer span.End()
	span.SetAttributes(attribute.String("target", targetUrl))

	g.tel.ReportDebug(report_generator_inspect, targetUrl)

	// texts are irrelevant when nothing is submitted
	r, err := g.start(ctx, targetUrl, []string{""})
	if err != nil {
		return Inspection{}, g.finish(span, err)
	}
	analysis, err := r.loadAndAnalyze(ctx)
	if err != nil {
		return Inspection{Analysis: analysis, Diagnostics: r.diagnostics}, g.finish(span, err)
	}
	return Inspection{Analysis: analysis, Diagnostics: r.diagnostics}, nil
}
