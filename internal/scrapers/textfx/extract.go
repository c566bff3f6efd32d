package textfx

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"textfx-backend/internal/components/chrono"
	"textfx-backend/internal/components/telemetry"
	"textfx-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extract_strategy = "extract.strategy"
)

// strategy is one way of resolving the result image from a submission response.
// Not finding anything is (candidate{}, false, nil), errors are reserved for failures
// that must end the pipeline.
type strategy interface {
	name() string
	extract(ctx context.Context, e *extraction) (candidate, bool, error)
}

// defaultStrategies are ordered from the most specific to the most speculative.
func defaultStrategies() []strategy {
	return []strategy{
		directScan{},
		endpointProbe{},
		processingWait{},
		redirectFollow{},
		bestOfScan{},
	}
}

// extraction is the state shared by the strategies of one pipeline run.
type extraction struct {
	session  *session
	cfg      Config
	clock    chrono.API
	tel      telemetry.API
	texts    []string
	params   GenerationParameters
	response page

	warnings []string
}

func (e *extraction) warn(id string, err error) {
	e.tel.ReportWarning(id, err)
	e.warnings = append(e.warnings, err.Error())
}

// run tries every strategy in order and returns the first candidate found along with the
// name of the strategy that found it.
func (e *extraction) run(ctx context.Context, strategies []strategy) (candidate, string, bool, error) {
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return candidate{}, "", false, transportError(err)
		}

		found, ok, err := s.extract(ctx, e)
		if err != nil {
			return candidate{}, s.name(), false, err
		}
		if ok {
			e.tel.ReportDebug(report_extract_strategy, s.name(), found.Url)
			return found, s.name(), true, nil
		}
		e.tel.ReportDebug(report_extract_strategy, s.name(), "no candidate")
	}
	return candidate{}, "", false, nil
}

// softFailure decides whether an error from a speculative secondary request should only be
// recorded as a warning. Cancellation of the pipeline itself is never soft.
func (e *extraction) softFailure(ctx context.Context, id string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return transportError(ctxErr)
	}
	if errors.Is(err, ErrProcessingFailed) {
		return err
	}
	e.warn(id, err)
	return nil
}

type markupPattern struct {
	selector string
	attr     string
}

// resultPatterns locate images that are known to be generated results, in order of
// preference.
var resultPatterns = []markupPattern{
	{selector: `img[src*="/result/"]`, attr: "src"},
	{selector: `img[src*="/generated/"]`, attr: "src"},
	{selector: `img[src*="/output/"]`, attr: "src"},
	{selector: `img[src*="/cache/"]`, attr: "src"},
	{selector: `img[data-src*="/result/"]`, attr: "data-src"},
	{selector: `img.result-image`, attr: "src"},
	{selector: `img#result-image`, attr: "src"},
	{selector: `#result-image img`, attr: "src"},
	{selector: `.photo-result img`, attr: "src"},
	{selector: `.result-container img`, attr: "src"},
	{selector: `.thumbnail-result img`, attr: "src"},
	{selector: `a[href*="/download/"]`, attr: "href"},
	{selector: `a[download]`, attr: "href"},
}

// excludedFragments mark decorative and sample images by file name. Matching urls are never
// taken by the direct scan and count as templates everywhere else. Only the last path segment
// is checked: effect pages themselves live under paths like /logo-and-text-effects/.
var excludedFragments = []string{"logo", "sample", "demo", "template", "placeholder"}

func isExcluded(rawUrl string, fingerprints []string) bool {
	name := strings.ToLower(fileName(rawUrl))
	for _, fragment := range excludedFragments {
		if strings.Contains(name, fragment) {
			return true
		}
	}
	return matchesFingerprint(rawUrl, fingerprints)
}

// fileName returns the last path segment of `rawUrl`, ignoring query and fragment.
func fileName(rawUrl string) string {
	p := rawUrl
	if u, err := url.Parse(rawUrl); err == nil {
		p = u.Path
	}
	return path.Base(p)
}

// scanMarkup applies resultPatterns to a document, the first non excluded match wins.
func scanMarkup(doc *goquery.Document, base *url.URL, fingerprints []string) (candidate, bool) {
	for _, pattern := range resultPatterns {
		var found candidate
		doc.Find(pattern.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			resolved := htmlutil.ResolveUrl(base, s.AttrOr(pattern.attr, ""))
			if !htmlutil.IsAbsoluteHttpUrl(resolved) || isExcluded(resolved, fingerprints) {
				return true
			}
			found = candidate{Url: resolved}
			return false
		})
		if found.Url != "" {
			return found, true
		}
	}
	return candidate{}, false
}

// inlineScripts concatenates the contents of every script element without a src.
func inlineScripts(doc *goquery.Document) string {
	var out strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		out.WriteString(htmlutil.GetText(s.Nodes[0]))
		out.WriteString("\n")
	})
	return out.String()
}

type directScan struct{}

func (directScan) name() string {
	return "direct-scan"
}

func (directScan) extract(_ context.Context, e *extraction) (candidate, bool, error) {
	found, ok := scanMarkup(e.response.doc, e.response.finalUrl, e.cfg.TemplateFingerprints)
	return found, ok, nil
}
