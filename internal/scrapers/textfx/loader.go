package textfx

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const (
	report_loader_load_page = "loader.load-page"
	report_loader_fetch     = "loader.fetch"
)

// page is a fetched and parsed html document.
type page struct {
	doc      *goquery.Document
	body     []byte
	finalUrl *url.URL
	status   int
}

func (p page) diagnostics() Diagnostics {
	d := Diagnostics{ResponseBytes: len(p.body)}
	if p.finalUrl != nil {
		d.FinalUrl = p.finalUrl.String()
	}
	if p.doc != nil {
		d.FormsFound = p.doc.Find("form").Length()
		d.ImagesFound = p.doc.Find("img").Length()
		d.ProcessingMentioned = bytes.Contains(bytes.ToLower(p.body), []byte("processing"))
	}
	return d
}

func newPage(res *resty.Response, requested *url.URL) (page, error) {
	finalUrl := requested
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalUrl = res.RawResponse.Request.URL
	}

	body := res.Body()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return page{}, fmt.Errorf("parse html: %w", err)
	}
	doc.Url = finalUrl

	return page{
		doc:      doc,
		body:     body,
		finalUrl: finalUrl,
		status:   res.StatusCode(),
	}, nil
}

var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Cache-Control":             "no-cache",
}

// loadPage fetches the effect page, starting a fresh set of session cookies.
func (s *session) loadPage(ctx context.Context, timeout time.Duration) (page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := s.target.String()
	s.tel.ReportDebug(report_loader_load_page, target)

	res, err := s.http.R().
		SetContext(ctx).
		SetHeaders(browserHeaders).
		Get(target)
	if err != nil {
		s.tel.ReportBroken(report_loader_load_page, fmt.Errorf("fetch: %w", err), target)
		return page{}, transportError(err)
	}

	switch status := res.StatusCode(); {
	case status == http.StatusForbidden,
		status == http.StatusNotFound,
		status == http.StatusGone,
		status >= http.StatusInternalServerError:
		s.tel.ReportBroken(report_loader_load_page, "unexpected status", status, target)
		return page{}, statusError(status)
	}

	s.replaceCookies(res)

	loaded, err := newPage(res, s.target)
	if err != nil {
		s.tel.ReportBroken(report_loader_load_page, err, target)
		return page{}, err
	}
	return loaded, nil
}

// fetch issues a follow-up GET with the session cookies, used for reloads and redirects.
// Responses with a status of 400 or above are returned as errors.
func (s *session) fetch(ctx context.Context, link *url.URL, timeout time.Duration) (page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := s.request(ctx).
		SetHeader("Accept", browserHeaders["Accept"]).
		SetHeader("Referer", s.target.String()).
		Get(link.String())
	if err != nil {
		s.tel.ReportWarning(report_loader_fetch, fmt.Errorf("fetch: %w", err), link.String())
		return page{}, transportError(err)
	}
	s.updateCookies(res)

	if res.StatusCode() >= http.StatusBadRequest {
		return page{}, statusError(res.StatusCode())
	}
	return newPage(res, link)
}
