package textfx

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"textfx-backend/internal/components/chrono"
	"textfx-backend/internal/components/telemetry"
	"time"
)

const effectPath = "/effects/neon-light-123.html"

const categoryPath = "/logo-and-text-effects/neon-123.html"

const effectPage = `<!DOCTYPE html>
<html>
<head>
	<title>Neon Light Text Effect</title>
	<meta name="csrf-token" content="tok-123">
</head>
<body>
	<form action="/search" method="get">
		<input type="text" name="q" placeholder="Search effects">
		<button type="submit">Search</button>
	</form>
	<img src="/images/logo.png" alt="logo">
	<form action="/effect/create-image" method="post" enctype="multipart/form-data">
		<input type="text" name="text_0" value="">
		<button type="submit" name="submit" value="GO">Generate</button>
	</form>
	<input type="hidden" name="build_server" id="build_server" value="https://s3.photooxy.com">
	<img src="/images/default-effect-preview.jpg">
</body>
</html>`

// stubProvider is an in-process imitation of the text effect provider. Every response is
// configurable per test, requests it received are kept for assertions.
type stubProvider struct {
	server *httptest.Server

	mutex sync.Mutex

	effectPage     string
	effectStatus   int
	uniqueSessions bool
	loads          int
	issued         []string

	submission   string
	submitStatus int
	reloaded     string
	submitted    map[string][]string
	submitCookie string
	submitSets   string
	submissions  []submission

	statuses      []string
	statusCalls   int
	statusCookies []string

	probeBody string
	probed    map[string][]string

	pages map[string]string

	imageType   string
	imageLength int
	imageStatus int
}

// submission is what one POST to the create endpoint carried.
type submission struct {
	cookie string
	texts  []string
}

func newStubProvider(t testing.TB) *stubProvider {
	p := &stubProvider{
		effectPage:   effectPage,
		effectStatus: http.StatusOK,
		submitStatus: http.StatusOK,
		pages:        map[string]string{},
		imageType:    "image/jpeg",
		imageLength:  50000,
		imageStatus:  http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(effectPath, p.handleEffect)
	mux.HandleFunc("/effect/create-image", p.handleCreate)
	mux.HandleFunc("/status/", p.handleStatus)
	mux.HandleFunc("/ajax/generate", p.handleProbe)
	mux.HandleFunc("/view/", p.handlePage)
	mux.HandleFunc("/logo-and-text-effects/", p.handleCategory)
	for _, prefix := range []string{"/result/", "/output/", "/generated/", "/uploads/", "/images/"} {
		mux.HandleFunc(prefix, p.handleImage)
	}

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *stubProvider) url(path string) string {
	return p.server.URL + path
}

func (p *stubProvider) handleEffect(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.loads++
	value := "abc"
	if p.uniqueSessions {
		value = "abc-" + strconv.Itoa(p.loads)
	}
	p.issued = append(p.issued, "session="+value)

	http.SetCookie(w, &http.Cookie{Name: "session", Value: value, Path: "/"})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(p.effectStatus)
	w.Write([]byte(p.effectPage))
}

func (p *stubProvider) handleCreate(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method == http.MethodGet {
		w.Write([]byte(p.reloaded))
		return
	}

	err := r.ParseMultipartForm(1 << 20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.submitted = r.MultipartForm.Value
	p.submitCookie = r.Header.Get("Cookie")
	p.submissions = append(p.submissions, submission{
		cookie: p.submitCookie,
		texts:  r.MultipartForm.Value["text_0"],
	})

	if p.submitSets != "" {
		w.Header().Add("Set-Cookie", p.submitSets)
	}

	w.WriteHeader(p.submitStatus)
	w.Write([]byte(p.submission))
}

func (p *stubProvider) handleStatus(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	idx := p.statusCalls
	if idx >= len(p.statuses) {
		idx = len(p.statuses) - 1
	}
	p.statusCalls++
	p.statusCookies = append(p.statusCookies, r.Header.Get("Cookie"))

	w.Header().Set("Content-Type", "application/json")
	if idx < 0 {
		w.Write([]byte(`{"status":"processing"}`))
		return
	}
	w.Write([]byte(p.statuses[idx]))
}

func (p *stubProvider) handleProbe(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.probed = r.PostForm

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(p.probeBody))
}

func (p *stubProvider) handlePage(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	body, ok := p.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

// handleCategory serves an effect page that posts to itself along with the images
// stored under its directory.
func (p *stubProvider) handleCategory(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == categoryPath && r.Method == http.MethodPost:
		p.handleCreate(w, r)
	case r.URL.Path == categoryPath:
		p.handleEffect(w, r)
	default:
		p.handleImage(w, r)
	}
}

func (p *stubProvider) handleImage(w http.ResponseWriter, r *http.Request) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.imageStatus != http.StatusOK {
		w.WriteHeader(p.imageStatus)
		return
	}
	w.Header().Set("Content-Type", p.imageType)
	w.Header().Set("Content-Length", strconv.Itoa(p.imageLength))
	if r.Method == http.MethodHead {
		return
	}
	w.Write([]byte(strings.Repeat("x", p.imageLength)))
}

func (p *stubProvider) lastSubmitted() map[string][]string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.submitted
}

func (p *stubProvider) lastProbed() map[string][]string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.probed
}

func (p *stubProvider) lastCookie() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.submitCookie
}

func (p *stubProvider) polledCookies() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.statusCookies...)
}

func (p *stubProvider) allSubmissions() []submission {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]submission(nil), p.submissions...)
}

func (p *stubProvider) issuedCookies() []string {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return append([]string(nil), p.issued...)
}

func (p *stubProvider) statusCount() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.statusCalls
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ProviderHost = "127.0.0.1"
	cfg.DisableCloudflareBypass = true
	cfg.RequestsPerSecond = 1000
	cfg.RequestBurst = 100
	return cfg
}

var testEpoch = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func newTestGenerator(t testing.TB) (*Generator, *telemetry.Recorder, *chrono.FakeImpl) {
	rec := telemetry.NewRecorder()
	clock := chrono.NewFakeImpl(testEpoch)
	g, err := NewGenerator(testConfig(), rec, clock)
	if err != nil {
		t.Fatal(err)
	}
	return g, rec, clock
}

func newRecorder() *telemetry.Recorder {
	return telemetry.NewRecorder()
}

func newClock() *chrono.FakeImpl {
	return chrono.NewFakeImpl(testEpoch)
}
