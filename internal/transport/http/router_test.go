package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"form-builder-service/internal/app"
	"form-builder-service/internal/domain"
	"form-builder-service/internal/infra/memory"
	"form-builder-service/internal/metrics"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const clozeFormBody = `{"title":"Animals","questions":[{"type":"cloze","clozeData":{"question":"Fill","text":"The [fox] jumps."}}]}`

type testEnv struct {
	router    *gin.Engine
	forms     *app.FormService
	responses *app.ResponseService
	images    *fakeImages
	feeds     *memory.FeedRegistry
}

type envOption func(*Dependencies, *RouterConfig)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, memory.NewFormStore(), opts...)
}

func newTestEnvWithRepo(t *testing.T, repo app.FormRepository, opts ...envOption) *testEnv {
	t.Helper()
	feeds := memory.NewFeedRegistry()
	env := &testEnv{
		images: &fakeImages{},
		feeds:  feeds,
		forms:  app.NewFormService(repo),
		responses: app.NewResponseService(repo, memory.NewResponseStore(),
			app.WithFeeds(feeds)),
	}
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	deps := Dependencies{Forms: env.forms, Responses: env.responses, Images: env.images}
	cfg := RouterConfig{MaxUploadBytes: 1 << 20, Done: done}
	for _, opt := range opts {
		opt(&deps, &cfg)
	}
	env.router = NewRouter(deps, cfg)
	return env
}

func (e *testEnv) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// publishedForm creates and publishes the cloze form and returns its id.
func (e *testEnv) publishedForm(t *testing.T) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/forms", clozeFormBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create form: status %d body %s", rec.Code, rec.Body.String())
	}
	var form domain.Form
	decodeData(t, rec, &form)
	if rec := e.do(http.MethodPut, "/api/forms/"+form.ID+"/publish", ""); rec.Code != http.StatusOK {
		t.Fatalf("publish form: status %d body %s", rec.Code, rec.Body.String())
	}
	return form.ID
}

type decodedEnvelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Count      *int            `json:"count"`
	Pagination *app.Pagination `json:"pagination"`
	Errors     []string        `json:"errors"`
	Error      string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) decodedEnvelope {
	t.Helper()
	var env decodedEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) decodedEnvelope {
	t.Helper()
	env := decode(t, rec)
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return env
}

type fakeImages struct {
	names []string
	err   error
}

func (f *fakeImages) Upload(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.names = append(f.names, name)
	return "/uploads/" + name, nil
}

type failingForms struct {
	*memory.FormStore
	err error
}

func (f failingForms) ListForms(context.Context) ([]domain.Form, error) {
	return nil, f.err
}

func TestFormLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/forms", clozeFormBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var form domain.Form
	created := decodeData(t, rec, &form)
	if !created.Success || created.Message != "Form created successfully" {
		t.Fatalf("unexpected envelope: %+v", created)
	}
	if !domain.IsValidID(form.ID) || form.IsPublished {
		t.Fatalf("unexpected form: %+v", form)
	}

	rec = env.do(http.MethodGet, "/api/forms/"+form.ID+"/fill", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected draft fill to be refused, got %d", rec.Code)
	}
	if got := decode(t, rec); got.Success || got.Message != "Form is not published and cannot accept responses" {
		t.Fatalf("unexpected error envelope: %+v", got)
	}

	rec = env.do(http.MethodPut, "/api/forms/"+form.ID+"/publish", "")
	if got := decode(t, rec); rec.Code != http.StatusOK || got.Message != "Form published successfully" {
		t.Fatalf("publish: %d %+v", rec.Code, got)
	}

	rec = env.do(http.MethodGet, "/api/forms/"+form.ID+"/fill", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("fill: expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "fox") {
		t.Fatalf("respondent view leaks the answer key: %s", rec.Body.String())
	}
	var view domain.Form
	decodeData(t, rec, &view)
	if view.Questions[0].Cloze.Text != "The [___] jumps." {
		t.Fatalf("unexpected respondent text %q", view.Questions[0].Cloze.Text)
	}

	rec = env.do(http.MethodGet, "/api/forms", "")
	if got := decode(t, rec); got.Count == nil || *got.Count != 1 {
		t.Fatalf("expected count 1, got %+v", got)
	}
	var summaries []domain.FormSummary
	if got := decodeData(t, env.do(http.MethodGet, "/api/forms/published", ""), &summaries); *got.Count != 1 {
		t.Fatalf("expected one published form, got %d", *got.Count)
	}
	if summaries[0].Title != "Animals" {
		t.Fatalf("unexpected summary %+v", summaries[0])
	}

	rec = env.do(http.MethodPut, "/api/forms/"+form.ID, `{"title":"Renamed","questions":[]}`)
	var updated domain.Form
	if got := decodeData(t, rec, &updated); rec.Code != http.StatusOK || got.Message != "Form updated successfully" {
		t.Fatalf("update: %d %+v", rec.Code, got)
	}
	if updated.Title != "Renamed" || len(updated.Questions) != 0 {
		t.Fatalf("unexpected update result %+v", updated)
	}

	upper := strings.ToUpper(form.ID)
	rec = env.do(http.MethodGet, "/api/forms/"+upper, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("uppercase id: expected 200, got %d", rec.Code)
	}
	var fetched domain.Form
	if decodeData(t, rec, &fetched); fetched.ID != form.ID {
		t.Fatalf("uppercase id resolved to %q", fetched.ID)
	}

	rec = env.do(http.MethodDelete, "/api/forms/"+upper, "")
	var deleted struct {
		ID string `json:"id"`
	}
	if got := decodeData(t, rec, &deleted); rec.Code != http.StatusOK || got.Message != "Form deleted successfully" {
		t.Fatalf("delete: %d %+v", rec.Code, got)
	}
	if deleted.ID != form.ID {
		t.Fatalf("expected deleted id %s, got %q", form.ID, deleted.ID)
	}
	if rec := env.do(http.MethodGet, "/api/forms/"+form.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateFormValidation(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []string{"", `{}`, `{"title":"  "}`} {
		rec := env.do(http.MethodPost, "/api/forms", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
		got := decode(t, rec)
		if got.Message != "Validation failed" || len(got.Errors) == 0 || got.Errors[0] != "Form title is required" {
			t.Fatalf("body %q: unexpected envelope %+v", body, got)
		}
	}

	rec := env.do(http.MethodPost, "/api/forms", `{"title":`)
	if got := decode(t, rec); rec.Code != http.StatusBadRequest || got.Message != "Invalid request body" {
		t.Fatalf("malformed body: %d %+v", rec.Code, got)
	}

	rec = env.do(http.MethodPost, "/api/forms", `{"title":"T","questions":"nope"}`)
	if got := decode(t, rec); rec.Code != http.StatusBadRequest || got.Errors[0] != "Questions must be an array" {
		t.Fatalf("non-array questions: %d %+v", rec.Code, got)
	}
}

func TestPublishIncompleteForm(t *testing.T) {
	env := newTestEnv(t)
	var form domain.Form
	decodeData(t, env.do(http.MethodPost, "/api/forms", `{"title":"Empty"}`), &form)

	rec := env.do(http.MethodPut, "/api/forms/"+form.ID+"/publish", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decode(t, rec); !strings.HasPrefix(got.Message, "Cannot publish form") {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func TestIdentifierErrors(t *testing.T) {
	env := newTestEnv(t)
	missing := domain.NewID()

	cases := []struct {
		method, path string
		status       int
		message      string
	}{
		{http.MethodGet, "/api/forms/not-an-id", http.StatusBadRequest, "Invalid form ID format"},
		{http.MethodGet, "/api/forms/" + missing, http.StatusNotFound, "Form not found"},
		{http.MethodPut, "/api/forms/" + missing + "/publish", http.StatusNotFound, "Form not found"},
		{http.MethodDelete, "/api/forms/xyz", http.StatusBadRequest, "Invalid form ID format"},
		{http.MethodGet, "/api/responses/xyz", http.StatusBadRequest, "Invalid response ID format"},
		{http.MethodGet, "/api/responses/" + missing, http.StatusNotFound, "Response not found"},
		{http.MethodGet, "/api/responses/form/xyz", http.StatusBadRequest, "Invalid form ID format"},
		{http.MethodGet, "/api/responses/analytics/" + missing, http.StatusNotFound, "Form not found"},
		{http.MethodGet, "/api/nothing-here", http.StatusNotFound, "Route not found"},
	}
	for _, tc := range cases {
		rec := env.do(tc.method, tc.path, "")
		if rec.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, rec.Code)
		}
		if got := decode(t, rec); got.Success || got.Message != tc.message {
			t.Fatalf("%s %s: unexpected envelope %+v", tc.method, tc.path, got)
		}
	}
}

func TestSubmitAndReadResponses(t *testing.T) {
	env := newTestEnv(t)
	formID := env.publishedForm(t)

	body := fmt.Sprintf(`{"formId":%q,"responses":[["Fox"]],"metadata":{"deviceType":"mobile","timeSpent":12}}`, formID)
	rec := env.do(http.MethodPost, "/api/responses", body, "X-Session-ID", "session-1", "User-Agent", "test-agent")
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.Response
	if got := decodeData(t, rec, &resp); got.Message != "Response submitted successfully" {
		t.Fatalf("unexpected message %q", got.Message)
	}
	if resp.TotalScore != 1 || resp.MaxTotalScore != 1 || resp.OverallPercentage != 100 {
		t.Fatalf("unexpected scores %+v", resp)
	}
	if resp.UserInfo == nil || resp.UserInfo.SessionID != "session-1" || resp.UserInfo.UserAgent != "test-agent" {
		t.Fatalf("unexpected user info %+v", resp.UserInfo)
	}

	second := fmt.Sprintf(`{"formId":%q,"responses":[["wolf"]]}`, formID)
	if rec := env.do(http.MethodPost, "/api/responses", second); rec.Code != http.StatusCreated {
		t.Fatalf("second submit: %d", rec.Code)
	}

	rec = env.do(http.MethodGet, "/api/responses/form/"+formID+"?page=1&limit=1&sortBy=totalScore&sortOrder=asc", "")
	var page []domain.Response
	listed := decodeData(t, rec, &page)
	if listed.Pagination == nil || listed.Pagination.TotalResponses != 2 || listed.Pagination.TotalPages != 2 || !listed.Pagination.HasNextPage {
		t.Fatalf("unexpected pagination %+v", listed.Pagination)
	}
	if len(page) != 1 || page[0].TotalScore != 0 {
		t.Fatalf("expected the lowest score first, got %+v", page)
	}

	for _, path := range []string{"/api/responses/analytics/" + formID, "/api/responses/form/" + formID + "/analytics"} {
		var report domain.AnalyticsReport
		rec := env.do(http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		decodeData(t, rec, &report)
		if report.TotalResponses != 2 || report.AverageScore != 0.5 || report.AveragePercentage != 50 {
			t.Fatalf("%s: unexpected report %+v", path, report)
		}
	}

	var withForm domain.ResponseWithForm
	decodeData(t, env.do(http.MethodGet, "/api/responses/"+resp.ID, ""), &withForm)
	if withForm.Form == nil || withForm.Form.Title != "Animals" {
		t.Fatalf("expected embedded form, got %+v", withForm.Form)
	}

	rec = env.do(http.MethodDelete, "/api/responses/"+resp.ID, "")
	var deleted struct {
		ID string `json:"id"`
	}
	if got := decodeData(t, rec, &deleted); rec.Code != http.StatusOK || got.Message != "Response deleted successfully" {
		t.Fatalf("delete: %d %+v", rec.Code, got)
	}
	if deleted.ID != resp.ID {
		t.Fatalf("expected deleted id %s, got %q", resp.ID, deleted.ID)
	}
	if rec := env.do(http.MethodGet, "/api/responses/"+resp.ID, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestSubmitRejections(t *testing.T) {
	env := newTestEnv(t)
	var draft domain.Form
	decodeData(t, env.do(http.MethodPost, "/api/forms", clozeFormBody), &draft)

	rec := env.do(http.MethodPost, "/api/responses", fmt.Sprintf(`{"formId":%q,"responses":[["fox"]]}`, draft.ID))
	if got := decode(t, rec); rec.Code != http.StatusBadRequest || got.Message != "Form is not published and cannot accept responses" {
		t.Fatalf("draft submit: %d %+v", rec.Code, got)
	}

	rec = env.do(http.MethodPost, "/api/responses", `{"responses":[]}`)
	got := decode(t, rec)
	if rec.Code != http.StatusBadRequest || got.Message != "Validation failed" {
		t.Fatalf("invalid submit: %d %+v", rec.Code, got)
	}
	if len(got.Errors) != 2 || got.Errors[0] != "Form ID is required" || got.Errors[1] != "At least one response is required" {
		t.Fatalf("unexpected validation errors %v", got.Errors)
	}

	rec = env.do(http.MethodPost, "/api/responses", fmt.Sprintf(`{"formId":%q,"responses":[1]}`, domain.NewID()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown form: expected 404, got %d", rec.Code)
	}
}

func TestServerErrorDetail(t *testing.T) {
	repo := failingForms{FormStore: memory.NewFormStore(), err: errors.New("db down")}

	dev := newTestEnvWithRepo(t, repo)
	rec := dev.do(http.MethodGet, "/api/forms", "")
	got := decode(t, rec)
	if rec.Code != http.StatusInternalServerError || got.Message != "Server error while fetching forms" || got.Error != "db down" {
		t.Fatalf("development: %d %+v", rec.Code, got)
	}

	prod := newTestEnvWithRepo(t, repo, func(_ *Dependencies, cfg *RouterConfig) { cfg.Production = true })
	rec = prod.do(http.MethodGet, "/api/forms", "")
	if got := decode(t, rec); rec.Code != http.StatusInternalServerError || got.Error != "" {
		t.Fatalf("production must hide details: %d %+v", rec.Code, got)
	}
}

func multipartImage(t *testing.T, contentType string, size int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="Header.PNG"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(bytes.Repeat([]byte{0x89}, size)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)

	upload := func(contentType string, size int) *httptest.ResponseRecorder {
		body, ct := multipartImage(t, contentType, size)
		req := httptest.NewRequest(http.MethodPost, "/api/uploads/images", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload("image/png", 128)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var result uploadResult
	decodeData(t, rec, &result)
	if len(env.images.names) != 1 || !strings.HasSuffix(env.images.names[0], ".png") {
		t.Fatalf("unexpected stored names %v", env.images.names)
	}
	if result.URL != "/uploads/"+env.images.names[0] {
		t.Fatalf("unexpected url %q", result.URL)
	}

	if rec := upload("text/plain", 16); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-image: expected 400, got %d", rec.Code)
	}
	if rec := upload("image/png", 2<<20); rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized: expected 400, got %d", rec.Code)
	}
	if rec := env.do(http.MethodPost, "/api/uploads/images", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file: expected 400, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	checks := map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
		"cache": func(context.Context) error { return errors.New("connection refused") },
	}
	env := newTestEnv(t, func(deps *Dependencies, _ *RouterConfig) {
		deps.HealthChecks = checks
		deps.Metrics = metrics.New()
	})

	rec := env.do(http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "degraded" || health.Checks["store"] != "ok" || health.Checks["cache"] != "connection refused" {
		t.Fatalf("unexpected health %+v", health)
	}

	env.do(http.MethodGet, "/api/forms", "")
	rec = env.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `endpoint="/api/forms"`) {
		t.Fatalf("expected request metrics, got %d", rec.Code)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/forms", "", "X-Request-ID", "req-42")
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected request id to propagate, got %q", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}

	rec = env.do(http.MethodGet, "/api/forms", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a generated request id")
	}

	rec = env.do(http.MethodGet, "/api/forms", "", "Origin", "http://client.test")
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected any origin to be allowed, got %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(_ *Dependencies, cfg *RouterConfig) {
		cfg.RateLimit = 2
		cfg.RateWindow = time.Minute
	})

	for i := 0; i < 2; i++ {
		if rec := env.do(http.MethodGet, "/api/forms", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := env.do(http.MethodGet, "/api/forms", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := decode(t, rec); got.Success {
		t.Fatalf("expected error envelope, got %+v", got)
	}
	if rec := env.do(http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("health endpoint must not be rate limited, got %d", rec.Code)
	}
}

func TestRateLimiterSweeperLifetime(t *testing.T) {
	l := newRateLimiter(2, time.Minute)
	done := make(chan struct{})
	l.stopped = make(chan struct{})
	go l.sweepUntil(done, time.Millisecond, time.Minute)
	close(done)
	select {
	case <-l.stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop after done was closed")
	}

	limit := RateLimit(1, time.Minute, nil)
	r := gin.New()
	r.GET("/", limit, func(c *gin.Context) { c.Status(http.StatusOK) })
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected limiting without a sweeper, got %v", codes)
	}
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(10, time.Minute)
	l.now = func() time.Time { return now }

	l.allow("10.0.0.1")
	now = now.Add(2 * time.Minute)
	l.allow("10.0.0.2")
	l.sweep(time.Minute)

	if l.size() != 1 {
		t.Fatalf("expected the idle visitor to be dropped, got %d visitors", l.size())
	}
}
