package textfx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"textfx-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extract_poll_status = "extract.poll-status"
	report_extract_blind_wait  = "extract.blind-wait"
)

const processingSelector = `.processing, .generating, [data-status="processing"], [data-status="generating"], [data-processing]`

var (
	completedStatuses = []string{"completed", "complete", "done", "ready", "success", "finished"}
	failedStatuses    = []string{"failed", "failure", "error"}
)

func isProcessing(doc *goquery.Document) bool {
	if doc.Find(processingSelector).Length() > 0 {
		return true
	}
	text := strings.ToLower(doc.Text())
	return strings.Contains(text, "processing") || strings.Contains(text, "generating")
}

func statusUrl(doc *goquery.Document, base *url.URL) (*url.URL, bool) {
	raw := doc.Find("[data-status-url]").First().AttrOr("data-status-url", "")
	if strings.TrimSpace(raw) == "" {
		raw = doc.Find(`meta[name="status-url"]`).First().AttrOr("content", "")
	}
	resolved := htmlutil.ResolveUrl(base, raw)
	if !htmlutil.IsAbsoluteHttpUrl(resolved) {
		return nil, false
	}
	parsed, err := url.Parse(resolved)
	if err != nil {
		return nil, false
	}
	return parsed, true
}

type pollState int

const (
	POLL_PENDING pollState = iota
	POLL_COMPLETED
)

// interpretStatus reads a status check response. A completed status without a usable url
// still ends the poll.
func interpretStatus(body []byte, base *url.URL) (pollState, string, error) {
	var object map[string]any
	if err := json.Unmarshal(body, &object); err != nil {
		return POLL_PENDING, "", nil
	}

	status, _ := object["status"].(string)
	status = strings.ToLower(strings.TrimSpace(status))

	if slices.Contains(failedStatuses, status) || truthy(object["error"]) {
		reason := "unknown error"
		if message, ok := object["error"].(string); ok && message != "" {
			reason = message
		} else if message, ok := object["message"].(string); ok && message != "" {
			reason = message
		}
		return POLL_PENDING, "", fmt.Errorf("%w: %s", ErrProcessingFailed, reason)
	}

	if slices.Contains(completedStatuses, status) || truthy(object["ready"]) {
		return POLL_COMPLETED, resultFromObject(object, base), nil
	}
	return POLL_PENDING, "", nil
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		v = strings.ToLower(strings.TrimSpace(v))
		return v != "" && v != "false" && v != "0"
	case float64:
		return v != 0
	}
	return false
}

type processingWait struct{}

func (processingWait) name() string {
	return "processing-wait"
}

func (p processingWait) extract(ctx context.Context, e *extraction) (candidate, bool, error) {
	if !isProcessing(e.response.doc) {
		return candidate{}, false, nil
	}

	status, ok := statusUrl(e.response.doc, e.response.finalUrl)
	if !ok {
		return p.blindWait(ctx, e)
	}
	return p.poll(ctx, e, status)
}

// poll checks the status url right away and then every PollInterval until the provider
// reports completion or failure, or PollCeiling is reached.
func (processingWait) poll(ctx context.Context, e *extraction, status *url.URL) (candidate, bool, error) {
	interval := e.cfg.PollInterval.Std()
	ceiling := e.cfg.PollCeiling.Std()
	start := e.clock.Now()

	for attempt := 1; ; attempt++ {
		state, result, err := pollOnce(ctx, e, status)
		if err != nil {
			if softErr := e.softFailure(ctx, report_extract_poll_status, err); softErr != nil {
				return candidate{}, false, softErr
			}
		}
		if state == POLL_COMPLETED {
			if result == "" {
				e.warn(report_extract_poll_status, fmt.Errorf("status %s completed without a result url", status))
				return candidate{}, false, nil
			}
			return candidate{
				Url:              result,
				IsLikelyTemplate: isExcluded(result, e.cfg.TemplateFingerprints),
			}, true, nil
		}

		if e.clock.Now().Sub(start)+interval > ceiling {
			e.warn(report_extract_poll_status, fmt.Errorf(
				"status %s still pending after %d check(s), giving up", status, attempt,
			))
			return candidate{}, false, nil
		}
		if err := e.clock.Sleep(ctx, interval); err != nil {
			return candidate{}, false, transportError(err)
		}
	}
}

func pollOnce(ctx context.Context, e *extraction, status *url.URL) (pollState, string, error) {
	pollCtx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout.Std())
	defer cancel()

	res, err := e.session.request(pollCtx).
		SetHeader("Accept", "application/json, text/javascript, */*; q=0.01").
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Referer", e.session.target.String()).
		Get(status.String())
	if err != nil {
		return POLL_PENDING, "", fmt.Errorf("status check %s: %w", status, err)
	}
	e.session.updateCookies(res)

	if res.StatusCode() >= http.StatusBadRequest {
		return POLL_PENDING, "", fmt.Errorf("status check %s: status %d", status, res.StatusCode())
	}
	return interpretStatus(res.Body(), e.session.origin)
}

// blindWait waits once and scans a reload of the response url, for pages that announce
// processing without exposing a way to check on it.
func (processingWait) blindWait(ctx context.Context, e *extraction) (candidate, bool, error) {
	e.tel.ReportDebug(report_extract_blind_wait, e.cfg.BlindWait.Std().String())
	if err := e.clock.Sleep(ctx, e.cfg.BlindWait.Std()); err != nil {
		return candidate{}, false, transportError(err)
	}

	reloaded, err := e.session.fetch(ctx, e.response.finalUrl, e.cfg.ProbeTimeout.Std())
	if err != nil {
		return candidate{}, false, e.softFailure(ctx, report_extract_blind_wait, err)
	}
	found, ok := scanMarkup(reloaded.doc, reloaded.finalUrl, e.cfg.TemplateFingerprints)
	return found, ok, nil
}
