package textfx

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"textfx-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extract_follow_redirect = "extract.follow-redirect"
)

var metaRefreshUrlRegex = regexp.MustCompile(`(?i)url\s*=\s*['"]?([^'";]+)`)

var scriptNavigationRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?:window\.|document\.)?location(?:\.href)?\s*=\s*['"]([^'"]+)['"]`),
	regexp.MustCompile(`location\.(?:replace|assign)\(\s*['"]([^'"]+)['"]\s*\)`),
}

// nextStep finds the url a page sends the browser on to, via meta refresh or a script level
// navigation.
func nextStep(doc *goquery.Document, base *url.URL) (*url.URL, bool) {
	var candidates []string
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		if !strings.EqualFold(s.AttrOr("http-equiv", ""), "refresh") {
			return
		}
		groups := metaRefreshUrlRegex.FindStringSubmatch(s.AttrOr("content", ""))
		if len(groups) >= 2 {
			candidates = append(candidates, strings.TrimSpace(groups[1]))
		}
	})

	scripts := inlineScripts(doc)
	for _, re := range scriptNavigationRegexes {
		for _, groups := range re.FindAllStringSubmatch(scripts, -1) {
			candidates = append(candidates, groups[1])
		}
	}

	for _, raw := range candidates {
		resolved := htmlutil.ResolveUrl(base, raw)
		if !htmlutil.IsAbsoluteHttpUrl(resolved) {
			continue
		}
		parsed, err := url.Parse(resolved)
		if err != nil {
			continue
		}
		return parsed, true
	}
	return nil, false
}

type redirectFollow struct{}

func (redirectFollow) name() string {
	return "redirect-follow"
}

// extract follows a single next step and scans it, it does not chain further.
func (redirectFollow) extract(ctx context.Context, e *extraction) (candidate, bool, error) {
	next, ok := nextStep(e.response.doc, e.response.finalUrl)
	if !ok {
		return candidate{}, false, nil
	}

	e.tel.ReportDebug(report_extract_follow_redirect, next.String())

	followed, err := e.session.fetch(ctx, next, e.cfg.ProbeTimeout.Std())
	if err != nil {
		return candidate{}, false, e.softFailure(ctx, report_extract_follow_redirect, err)
	}
	found, ok := scanMarkup(followed.doc, followed.finalUrl, e.cfg.TemplateFingerprints)
	return found, ok, nil
}
