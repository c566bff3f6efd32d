package textfx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	report_validate_head = "validate.head"
)

type validation struct {
	contentType       string
	contentLength     int64
	isLikelyGenerated bool
	warnings          []string
}

// validate classifies a candidate with a metadata-only request. It never rejects the
// candidate: the url is returned even if the request fails, since providers are known to
// block HEAD probes for urls that load fine.
func (s *session) validate(ctx context.Context, c candidate, cfg Config) validation {
	ctx, cancel := context.WithTimeout(ctx, cfg.ValidateTimeout.Std())
	defer cancel()

	var out validation
	template := c.IsLikelyTemplate || matchesFingerprint(c.Url, cfg.TemplateFingerprints)
	if template {
		out.warnings = append(out.warnings, "url matches a known template image")
	}

	res, err := s.request(ctx).
		SetHeader("Referer", s.target.String()).
		Head(c.Url)
	if err != nil {
		s.tel.ReportWarning(report_validate_head, fmt.Errorf("head: %w", err), c.Url)
		out.warnings = append(out.warnings, fmt.Sprintf("validation request failed: %s", err.Error()))
		return out
	}
	if res.StatusCode() >= http.StatusBadRequest {
		s.tel.ReportWarning(report_validate_head, "unexpected status", res.StatusCode(), c.Url)
		out.warnings = append(out.warnings, fmt.Sprintf("validation request returned status %d", res.StatusCode()))
		return out
	}

	out.contentType = res.Header().Get("Content-Type")
	out.contentLength = -1
	if header := res.Header().Get("Content-Length"); header != "" {
		parsed, err := strconv.ParseInt(header, 10, 64)
		if err == nil {
			out.contentLength = parsed
		}
	} else if res.RawResponse != nil {
		out.contentLength = res.RawResponse.ContentLength
	}

	isImage := strings.HasPrefix(strings.ToLower(strings.TrimSpace(out.contentType)), "image/")
	if !isImage || out.contentLength <= cfg.MinArtifactBytes {
		out.warnings = append(out.warnings, fmt.Sprintf(
			"unexpected artifact metadata: content-type %q, content-length %d (minimum %d)",
			out.contentType, out.contentLength, cfg.MinArtifactBytes,
		))
		return out
	}

	out.isLikelyGenerated = !template
	return out
}

func matchesFingerprint(rawUrl string, fingerprints []string) bool {
	lower := strings.ToLower(rawUrl)
	for _, fingerprint := range fingerprints {
		if fingerprint != "" && strings.Contains(lower, strings.ToLower(fingerprint)) {
			return true
		}
	}
	return false
}

