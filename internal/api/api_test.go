package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/storybundle/internal/bundle"
	"github.com/starford/storybundle/internal/bundleservice"
	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/render"
	"github.com/starford/storybundle/internal/storage"
	"github.com/starford/storybundle/internal/testutil"
)

// testEnv sets up a temp content root, SQLite catalog, service, and router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (storage.Provider, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (storage.Provider, http.Handler) {
	t.Helper()
	_, store := testutil.TestContent(t)
	db := testutil.TestDB(t)
	renderer := render.New(render.NewGoldmark())
	builder := &bundle.Builder{
		Store: store,
		Assembler: &bundle.Assembler{
			Store:    store,
			Renderer: renderer,
			Layout:   bundle.DefaultLayout(),
			Meta:     models.Meta{BundleFormat: "0.1", Generator: "storybundle test"},
		},
		DemosDir: "demos",
	}
	svc := bundleservice.NewService(store, db, builder, renderer)
	return store, NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// built returns a router whose catalog holds a build of version 1.0.
func built(t *testing.T) http.Handler {
	t.Helper()
	store, router := testEnv(t, "")
	testutil.SampleVersion(t, store, "1.0")
	w := do(t, router, http.MethodPost, "/builds", BuildRequest{Version: "1.0"})
	if w.Code != http.StatusOK {
		t.Fatalf("build status = %d, body = %s", w.Code, w.Body.String())
	}
	return router
}

func TestBuildEndpoint(t *testing.T) {
	store, router := testEnv(t, "")
	testutil.SampleVersion(t, store, "1.0")

	w := do(t, router, http.MethodPost, "/builds", BuildRequest{Version: "1.0"})
	if w.Code != http.StatusOK {
		t.Fatalf("build status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp BuildResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Languages) != 2 {
		t.Fatalf("languages = %+v", resp.Languages)
	}
	if resp.Languages[0].Lang != "en" || resp.Languages[0].Skipped {
		t.Errorf("en = %+v", resp.Languages[0])
	}
	if !resp.Languages[1].Skipped {
		t.Errorf("es should be skipped: %+v", resp.Languages[1])
	}

	w = do(t, router, http.MethodGet, "/builds/1.0", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"succeeded"`) {
		t.Errorf("last run = %d %s", w.Code, w.Body.String())
	}
}

func TestBuildEndpoint_Errors(t *testing.T) {
	store, router := testEnv(t, "")
	testutil.WriteFiles(t, store, map[string]string{
		"demos/v2.0/en/project.csv": "order,story_id,title\n",
	})

	if w := do(t, router, http.MethodPost, "/builds", map[string]string{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing version = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/builds", BuildRequest{Version: "9.9"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown version = %d, want 404", w.Code)
	}
	w := do(t, router, http.MethodPost, "/builds", BuildRequest{Version: "2.0"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty version = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No content found") {
		t.Errorf("body = %s", w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/builds/3.0", nil); w.Code != http.StatusNotFound {
		t.Errorf("last run of unknown version = %d, want 404", w.Code)
	}
}

func TestVersionsAndBundles(t *testing.T) {
	router := built(t)

	w := do(t, router, http.MethodGet, "/versions", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"versions":["1.0"]}` {
		t.Errorf("versions = %d %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/bundles?version=1.0", nil)
	var list BundleListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Bundles) != 1 || list.Bundles[0].Lang != "en" {
		t.Errorf("bundles = %+v", list.Bundles)
	}

	w = do(t, router, http.MethodGet, "/bundles/1.0/en", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get bundle = %d", w.Code)
	}
	var b models.Bundle
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("bundle is not JSON: %v", err)
	}
	if b.Meta.Language != "en" || len(b.Stories) != 1 {
		t.Errorf("bundle = %+v", b)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("bundle response has no ETag")
	}
	req := httptest.NewRequest(http.MethodGet, "/bundles/1.0/en", nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	router.ServeHTTP(cached, req)
	if cached.Code != http.StatusNotModified || cached.Body.Len() != 0 {
		t.Errorf("conditional get = %d with %d bytes, want 304 and empty", cached.Code, cached.Body.Len())
	}

	if w := do(t, router, http.MethodGet, "/bundles/1.0/es", nil); w.Code != http.StatusNotFound {
		t.Errorf("skipped language = %d, want 404", w.Code)
	}
}

func TestAdvisoriesAndValidate(t *testing.T) {
	router := built(t)

	w := do(t, router, http.MethodGet, "/bundles/1.0/en/advisories", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"advisories":[]}` {
		t.Errorf("advisories = %d %s", w.Code, w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/bundles/1.0/fr/advisories", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown bundle advisories = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodGet, "/bundles/1.0/en/validate", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"issues":[]}` {
		t.Errorf("validate = %d %s", w.Code, w.Body.String())
	}
}

func TestGlossarySearch(t *testing.T) {
	router := built(t)

	w := do(t, router, http.MethodGet, "/glossary/search?q=plaster&lang=en", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].TermID != "fresco" {
		t.Errorf("results = %+v", resp.Results)
	}

	if w := do(t, router, http.MethodGet, "/glossary/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing query = %d, want 400", w.Code)
	}
}

func TestRenderEndpoint(t *testing.T) {
	router := built(t)

	w := do(t, router, http.MethodPost, "/render", RenderRequest{Markdown: "See [[fresco]].", Version: "1.0", Lang: "en"})
	if w.Code != http.StatusOK {
		t.Fatalf("render = %d %s", w.Code, w.Body.String())
	}
	var resp RenderResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.HTML, `data-term-id="fresco">Fresco</a>`) {
		t.Errorf("html = %q", resp.HTML)
	}
	if strings.Contains(w.Body.String(), `\u003c`) {
		t.Errorf("HTML should not be escaped: %s", w.Body.String())
	}

	if w := do(t, router, http.MethodPost, "/render", RenderRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty markdown = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPost, "/render", RenderRequest{Markdown: "x", Version: "5.0", Lang: "en"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown bundle = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/versions", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed versions = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/versions", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Bearer realm="storybundle"` {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/versions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/versions", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes stream headers and blocks until the request ends.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}
