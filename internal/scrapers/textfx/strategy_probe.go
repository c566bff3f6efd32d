package textfx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
	"textfx-backend/lib/htmlutil"
)

const (
	report_extract_probe_endpoint = "extract.probe-endpoint"
)

// endpointRegexes find string literals in inline scripts that look like a generation
// endpoint, in order of confidence.
var endpointRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:url|ajax|endpoint)['":\s]*['"]([^'"\s]*(?:ajax|api|generate|create|build)[^'"\s]*)['"]`),
	regexp.MustCompile(`['"]([^'"\s]*/ajax/[^'"\s]*)['"]`),
	regexp.MustCompile(`['"]([^'"\s]*/api/[^'"\s]*)['"]`),
	regexp.MustCompile(`(?i)['"]((?:https?:)?/[^'"\s]*(?:generate|create|build)[^'"\s]*)['"]`),
}

// staticExtensions are never endpoints even if their name says "build" or "api".
var staticExtensions = []string{".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".woff", ".woff2"}

// resultKeys are checked in order in a structured endpoint response.
var resultKeys = []string{"image", "url", "result", "download_url"}

func findEndpoint(scripts string, base *url.URL) (*url.URL, bool) {
	for _, re := range endpointRegexes {
		for _, groups := range re.FindAllStringSubmatch(scripts, -1) {
			literal := groups[1]
			ext := strings.ToLower(path.Ext(strings.SplitN(literal, "?", 2)[0]))
			if slices.Contains(staticExtensions, ext) {
				continue
			}
			resolved := htmlutil.ResolveUrl(base, literal)
			if !htmlutil.IsAbsoluteHttpUrl(resolved) {
				continue
			}
			endpoint, err := url.Parse(resolved)
			if err != nil {
				continue
			}
			return endpoint, true
		}
	}
	return nil, false
}

// resultFromBody interprets an endpoint or status response: a json object is searched for
// resultKeys, anything else is accepted only if it is itself an absolute url.
func resultFromBody(body []byte, base *url.URL) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		switch value := decoded.(type) {
		case map[string]any:
			return resultFromObject(value, base)
		case string:
			if htmlutil.IsAbsoluteHttpUrl(value) {
				return strings.TrimSpace(value)
			}
			return ""
		}
		return ""
	}

	if htmlutil.IsAbsoluteHttpUrl(trimmed) {
		return trimmed
	}
	return ""
}

func resultFromObject(object map[string]any, base *url.URL) string {
	for _, key := range resultKeys {
		value, ok := object[key].(string)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		resolved := htmlutil.ResolveUrl(base, value)
		if htmlutil.IsAbsoluteHttpUrl(resolved) {
			return resolved
		}
	}
	return ""
}

type endpointProbe struct{}

func (endpointProbe) name() string {
	return "endpoint-probe"
}

func (endpointProbe) extract(ctx context.Context, e *extraction) (candidate, bool, error) {
	endpoint, ok := findEndpoint(inlineScripts(e.response.doc), e.response.finalUrl)
	if !ok {
		return candidate{}, false, nil
	}

	e.tel.ReportDebug(report_extract_probe_endpoint, endpoint.String())

	probeCtx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout.Std())
	defer cancel()

	form := url.Values{}
	for i, text := range e.texts {
		form.Add("text[]", text)
		form.Set(fmt.Sprintf("text_%d", i), text)
	}
	if e.params.EffectId != "" {
		form.Set("id", e.params.EffectId)
		form.Set("effect_id", e.params.EffectId)
	}
	if e.params.ProcessingServerId != "" {
		form.Set("build_server", e.params.ProcessingServerId)
	}
	if e.params.AntiForgeryToken != "" {
		form.Set("_token", e.params.AntiForgeryToken)
	}

	res, err := e.session.request(probeCtx).
		SetHeader("Accept", "application/json, text/javascript, */*; q=0.01").
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Origin", e.session.originHeader()).
		SetHeader("Referer", e.session.target.String()).
		SetFormDataFromValues(form).
		Post(endpoint.String())
	if err != nil {
		return candidate{}, false, e.softFailure(ctx, report_extract_probe_endpoint, fmt.Errorf("probe %s: %w", endpoint, err))
	}
	e.session.updateCookies(res)

	if res.StatusCode() >= http.StatusBadRequest {
		e.warn(report_extract_probe_endpoint, fmt.Errorf("probe %s: status %d", endpoint, res.StatusCode()))
		return candidate{}, false, nil
	}

	result := resultFromBody(res.Body(), e.session.origin)
	if result == "" {
		return candidate{}, false, nil
	}
	return candidate{
		Url:              result,
		IsLikelyTemplate: isExcluded(result, e.cfg.TemplateFingerprints),
	}, true, nil
}
