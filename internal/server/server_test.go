package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"giftai/internal/app"
	"giftai/internal/ratelimit"
	"giftai/pkg/domain"
	"giftai/pkg/queue"
	"giftai/pkg/render"
	"giftai/pkg/storage"
	"giftai/pkg/store"
)

type stubGenerator struct {
	text string
}

func (g stubGenerator) GenerateText(context.Context, string, string) (string, error) {
	return g.text, nil
}

type captureScheduler struct {
	jobs []queue.RenderJob
}

func (s *captureScheduler) Enqueue(_ context.Context, bookID, content, bookName, language string) (queue.RenderJob, error) {
	job := queue.RenderJob{ID: "job-1", BookID: bookID, Content: content, BookName: bookName, Language: language}
	s.jobs = append(s.jobs, job)
	return job, nil
}

type testEnv struct {
	app    *app.App
	server *Server
	sched  *captureScheduler
	tokens map[string]string
}

type stubArtifacts struct {
	baseURL string
}

func (stubArtifacts) Put(context.Context, string, io.Reader, int64, string) error { return nil }

func (stubArtifacts) PutFile(context.Context, string, string) error { return nil }

func (stubArtifacts) Delete(context.Context, string) error { return nil }

func (s stubArtifacts) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return s.baseURL + "/" + key, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvArtifacts(t, nil)
}

func newTestEnvArtifacts(t *testing.T, artifacts storage.ArtifactStore) *testEnv {
	t.Helper()
	mem := store.NewMemoryStore()
	for _, u := range []domain.User{
		{ID: "u1", Email: "dad@example.com", Name: "Dad"},
		{ID: "u2", Email: "other@example.com", Name: "Other"},
	} {
		if err := mem.SaveUser(u); err != nil {
			t.Fatal(err)
		}
	}
	renderer, err := render.NewRenderer(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	sched := &captureScheduler{}
	a, err := app.New(app.Config{
		Store:     mem,
		Sessions:  store.NewJWTSessionStore("test-secret", time.Hour),
		Generator: stubGenerator{text: "Chapter 1: Liftoff\n\nMia flew to the moon."},
		Renderer:  renderer,
		Scheduler: sched,
		Artifacts: artifacts,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	tokens := map[string]string{}
	for _, id := range []string{"u1", "u2"} {
		token, err := a.NewSession(id)
		if err != nil {
			t.Fatalf("session for %s: %v", id, err)
		}
		tokens[id] = token
	}
	return &testEnv{app: a, server: NewWithLimiter(a, nil), sched: sched, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) generate(t *testing.T, token string) domain.Book {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/book/generate", token, domain.BookRequest{
		Name: "Mia", Age: 7, Theme: "space", Tone: "whimsical", Giver: "Dad", Language: "English",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: status %d body %s", rec.Code, rec.Body.String())
	}
	var book domain.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &book); err != nil {
		t.Fatalf("decode book: %v", err)
	}
	return book
}

func TestGenerateRequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/book/generate", "", domain.BookRequest{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/book/generate", "garbage-token", domain.BookRequest{})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}
}

func TestGenerateCreatesPendingBook(t *testing.T) {
	e := newTestEnv(t)
	book := e.generate(t, e.tokens["u1"])

	if book.PDFReady {
		t.Fatal("fresh book must not be ready")
	}
	if book.OwnerID != "u1" {
		t.Fatalf("owner: %+v", book)
	}
	if !strings.Contains(book.Content, "A Special Gift for Mia") {
		t.Fatalf("content: %q", book.Content)
	}
	if len(e.sched.jobs) != 1 || e.sched.jobs[0].Content != book.Content {
		t.Fatalf("render job not scheduled with content: %+v", e.sched.jobs)
	}
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodPost, "/api/book/generate", e.tokens["u1"],
		domain.BookRequest{Name: "", Age: 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHistoryListsOwnBooks(t *testing.T) {
	e := newTestEnv(t)
	e.generate(t, e.tokens["u1"])
	e.generate(t, e.tokens["u2"])

	rec := e.do(t, http.MethodGet, "/api/book/history", e.tokens["u1"], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d", rec.Code)
	}
	var resp struct {
		Items []domain.Book `json:"items"`
		Count int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || len(resp.Items) != 1 || resp.Items[0].OwnerID != "u1" {
		t.Fatalf("unexpected history: %+v", resp)
	}

	if rec := e.do(t, http.MethodGet, "/api/book/history", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous history: %d", rec.Code)
	}
}

func TestDiscoverListsOnlyPublicBooks(t *testing.T) {
	e := newTestEnv(t)
	private := e.generate(t, e.tokens["u1"])
	shared := e.generate(t, e.tokens["u2"])

	rec := e.do(t, http.MethodPatch, "/api/book/"+shared.ID+"/visibility", e.tokens["u2"],
		map[string]bool{"isPublic": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("visibility: %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/api/book/discover", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("discover: %d", rec.Code)
	}
	var resp struct {
		Items []domain.Book `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != shared.ID {
		t.Fatalf("unexpected discover list: %+v", resp.Items)
	}
	for _, b := range resp.Items {
		if b.ID == private.ID {
			t.Fatal("private book leaked into discover")
		}
	}
}

func TestBookAccessControl(t *testing.T) {
	e := newTestEnv(t)
	book := e.generate(t, e.tokens["u1"])

	if rec := e.do(t, http.MethodGet, "/api/book/"+book.ID, e.tokens["u1"], nil); rec.Code != http.StatusOK {
		t.Fatalf("owner read: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/book/"+book.ID, e.tokens["u2"], nil); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger read: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/book/"+book.ID, "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("anonymous read: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/book/missing", e.tokens["u1"], nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing read: %d", rec.Code)
	}
}

func TestVisibilityOwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	book := e.generate(t, e.tokens["u1"])

	rec := e.do(t, http.MethodPatch, "/api/book/"+book.ID+"/visibility", e.tokens["u2"],
		map[string]bool{"isPublic": true})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger toggle: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPatch, "/api/book/"+book.ID+"/visibility", "",
		map[string]bool{"isPublic": true})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous toggle: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPatch, "/api/book/"+book.ID+"/visibility", e.tokens["u1"],
		map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing isPublic: %d", rec.Code)
	}
	rec = e.do(t, http.MethodPatch, "/api/book/"+book.ID+"/visibility", e.tokens["u1"],
		map[string]bool{"isPublic": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner toggle: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPDFLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	book := e.generate(t, e.tokens["u1"])

	rec := e.do(t, http.MethodGet, "/api/book/"+book.ID+"/status", e.tokens["u1"], nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"pdfReady":false`) {
		t.Fatalf("status before render: %d %s", rec.Code, rec.Body.String())
	}

	if rec := e.do(t, http.MethodGet, "/api/book/"+book.ID+"/pdf", e.tokens["u1"], nil); rec.Code != http.StatusNotFound {
		t.Fatalf("pdf before render: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/book/"+book.ID+"/download", e.tokens["u1"], nil); rec.Code != http.StatusNotFound {
		t.Fatalf("download before render: %d", rec.Code)
	}

	if err := e.app.HandleRenderJob(context.Background(), e.sched.jobs[0]); err != nil {
		t.Fatalf("render job: %v", err)
	}

	rec = e.do(t, http.MethodGet, "/api/book/"+book.ID+"/status", e.tokens["u1"], nil)
	if !strings.Contains(rec.Body.String(), `"pdfReady":true`) {
		t.Fatalf("status after render: %s", rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/api/book/"+book.ID+"/pdf", e.tokens["u1"], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf after render: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type: %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("response is not a pdf")
	}

	rec = e.do(t, http.MethodGet, "/api/book/"+book.ID+"/download", e.tokens["u1"], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download after render: %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Fatalf("content disposition: %q", cd)
	}
}

func TestDeleteBookOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	book := e.generate(t, e.tokens["u1"])

	if rec := e.do(t, http.MethodDelete, "/api/book/"+book.ID, e.tokens["u2"], nil); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger delete: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/book/"+book.ID, "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/book/"+book.ID, e.tokens["u1"], nil); rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete: %d %s", rec.Code, rec.Body.String())
	}
	if rec := e.do(t, http.MethodGet, "/api/book/"+book.ID, e.tokens["u1"], nil); rec.Code != http.StatusNotFound {
		t.Fatalf("deleted book still readable: %d", rec.Code)
	}
}

func TestDownloadRedirectsToMirror(t *testing.T) {
	e := newTestEnvArtifacts(t, stubArtifacts{baseURL: "https://cdn.example.com"})
	book := e.generate(t, e.tokens["u1"])
	if err := e.app.HandleRenderJob(context.Background(), e.sched.jobs[0]); err != nil {
		t.Fatalf("render job: %v", err)
	}

	rec := e.do(t, http.MethodGet, "/api/book/"+book.ID+"/download", e.tokens["u1"], nil)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect to mirror, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, "https://cdn.example.com/") {
		t.Fatalf("unexpected redirect target: %q", loc)
	}

	// Inline reading keeps serving the local file.
	rec = e.do(t, http.MethodGet, "/api/book/"+book.ID+"/pdf", e.tokens["u1"], nil)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("inline pdf: %d", rec.Code)
	}
}

func TestViewCountsThroughAPI(t *testing.T) {
	e := newTestEnv(t)
	book := e.generate(t, e.tokens["u1"])

	for i := 0; i < 3; i++ {
		if rec := e.do(t, http.MethodGet, "/api/book/"+book.ID+"/view", e.tokens["u1"], nil); rec.Code != http.StatusOK {
			t.Fatalf("view: %d", rec.Code)
		}
	}
	rec := e.do(t, http.MethodGet, "/api/book/"+book.ID, e.tokens["u1"], nil)
	var got domain.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ViewCount != 3 {
		t.Fatalf("expected 3 views, got %d", got.ViewCount)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	e := newTestEnv(t)
	srv := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(srv.Addr(), "", "test:ratelimit", 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	e.server = NewWithLimiter(e.app, limiter)

	e.generate(t, e.tokens["u1"])
	rec := e.do(t, http.MethodPost, "/api/book/generate", e.tokens["u1"], domain.BookRequest{
		Name: "Mia", Age: 7, Theme: "space", Tone: "whimsical", Giver: "Dad",
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}
