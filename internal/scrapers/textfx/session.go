package textfx

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"textfx-backend/internal/components/assert"
	"textfx-backend/internal/components/telemetry"
	"textfx-backend/lib/util/restyutil"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// session is the state of one pipeline run: the provider origin, the effect page, the
// cookies the provider handed out and the http client that carries them. A session is
// never shared between runs.
type session struct {
	origin    *url.URL
	target    *url.URL
	userAgent string
	cookies   []string

	http *resty.Client
	tel  telemetry.API
}

func newSession(cfg Config, target *url.URL, tel telemetry.API) *session {
	assert.NotNil(target)
	assert.NotNil(tel)
	assert.NotEmptyStr(cfg.UserAgent)

	httpClient := resty.New()
	// cookies are carried explicitly so that a page load can reset them
	httpClient.SetCookieJar(nil)
	if !cfg.DisableCloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	httpClient.SetHeader("User-Agent", cfg.UserAgent)
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(cfg.MaxRedirects))
	httpClient.SetTimeout(cfg.OverallTimeout.Std())

	rateLimiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, messageOutput(cfg, target, tel))

	return &session{
		origin:    &url.URL{Scheme: target.Scheme, Host: target.Host},
		target:    target,
		userAgent: cfg.UserAgent,
		http:      httpClient,
		tel:       tel,
	}
}

const report_session_dump = "session.dump"

func messageOutput(cfg Config, target *url.URL, tel telemetry.API) telemetry.MessageOutput {
	if cfg.DumpDirectory != "" {
		effectId, _ := EffectIdFromUrl(target)
		prefix := fmt.Sprintf("%s-%d", effectId, time.Now().UnixNano())
		out, err := restyutil.NewFilesystemOutput(cfg.DumpDirectory, prefix)
		if err == nil {
			return out
		}
		tel.ReportWarning(report_session_dump, err, cfg.DumpDirectory)
	}
	if cfg.DumpHttp {
		return telemetry.DebugOutput{Tel: tel}
	}
	return nil
}

// request creates a request carrying the session cookies.
func (s *session) request(ctx context.Context) *resty.Request {
	req := s.http.R().SetContext(ctx)
	if header := s.cookieHeader(); header != "" {
		req.SetHeader("Cookie", header)
	}
	return req
}

func (s *session) originHeader() string {
	return s.origin.String()
}

// replaceCookies overwrites the session cookies with the Set-Cookie values of `res`.
func (s *session) replaceCookies(res *resty.Response) {
	s.cookies = append([]string(nil), res.Header().Values("Set-Cookie")...)
}

// updateCookies merges the Set-Cookie values of `res` into the session by cookie name.
// Same-named cookies are overwritten, new ones appended and the rest kept.
func (s *session) updateCookies(res *resty.Response) {
	for _, raw := range res.Header().Values("Set-Cookie") {
		name := cookieName(raw)
		if name == "" {
			continue
		}
		replaced := false
		for i, existing := range s.cookies {
			if cookieName(existing) == name {
				s.cookies[i] = raw
				replaced = true
				break
			}
		}
		if !replaced {
			s.cookies = append(s.cookies, raw)
		}
	}
}

func cookieName(raw string) string {
	pair, _, _ := strings.Cut(raw, ";")
	name, _, _ := strings.Cut(pair, "=")
	return strings.TrimSpace(name)
}

func (s *session) cookieHeader() string {
	pairs := make([]string, 0, len(s.cookies))
	for _, raw := range s.cookies {
		pair, _, _ := strings.Cut(raw, ";")
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		pairs = append(pairs, pair)
	}
	return strings.Join(pairs, "; ")
}
