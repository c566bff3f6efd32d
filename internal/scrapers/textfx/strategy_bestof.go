package textfx

import (
	"context"
	"path"
	"slices"
	"sort"
	"strings"
	"textfx-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extract_best_of = "extract.best-of"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

const resultContainerSelector = `[class*="result"], [id*="result"]`

// collectCandidates gathers every image url of a document in document order, scored.
func collectCandidates(e *extraction, doc *goquery.Document) []candidate {
	now := e.clock.Now()
	base := e.response.finalUrl
	seen := map[string]struct{}{}

	var out []candidate
	add := func(s *goquery.Selection, raw string) {
		resolved := htmlutil.ResolveUrl(base, raw)
		if !htmlutil.IsAbsoluteHttpUrl(resolved) {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}

		score := ScoreUrl(resolved, now)
		if s.ParentsFiltered(resultContainerSelector).Length() > 0 {
			score += resultContainerBonus
		}
		out = append(out, candidate{
			Url:              resolved,
			IsLikelyTemplate: isExcluded(resolved, e.cfg.TemplateFingerprints),
			Score:            score,
		})
	}

	doc.Find("img, a[href]").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) != "a" {
			add(s, s.AttrOr("src", ""))
			add(s, s.AttrOr("data-src", ""))
			return
		}
		for _, anchor := range htmlutil.GetAnchors(base, s) {
			if slices.Contains(imageExtensions, strings.ToLower(path.Ext(anchor.Href.Path))) {
				add(s, anchor.Href.String())
			}
		}
	})
	return out
}

// rankCandidates orders non templates first, then by descending score. Ties keep document order.
func rankCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].IsLikelyTemplate != candidates[j].IsLikelyTemplate {
			return !candidates[i].IsLikelyTemplate
		}
		return candidates[i].Score > candidates[j].Score
	})
}

type bestOfScan struct{}

func (bestOfScan) name() string {
	return "best-of-scan"
}

// extract takes the best scored image of the response. If every image is a template the
// best template is still returned, flagged as such.
func (bestOfScan) extract(_ context.Context, e *extraction) (candidate, bool, error) {
	candidates := collectCandidates(e, e.response.doc)
	e.tel.ReportCount(report_extract_best_of, int64(len(candidates)))
	if len(candidates) == 0 {
		return candidate{}, false, nil
	}
	rankCandidates(candidates)
	return candidates[0], true, nil
}
