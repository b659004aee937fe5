package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/config"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/metrics"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/models"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/photogen"
	"github.com/thomasbroadsword/PhotoGenSeo/internal/workflow"
)

// fakeBackend scripts the three collaborator calls.
type fakeBackend struct {
	products map[string]models.ProductData
	loadErr  error
	sources  []models.ImageSource
	genErrs  map[string]error
}

func (b *fakeBackend) BatchSearch(_ context.Context, eans []string) (map[string]models.ProductData, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.products, nil
}

func (b *fakeBackend) SearchMore(_ context.Context, ean, productName string) ([]models.ImageSource, error) {
	return b.sources, nil
}

func (b *fakeBackend) RunFromImages(_ context.Context, req photogen.GenerationRequest) (*photogen.GenerationResult, error) {
	if err, ok := b.genErrs[req.EAN]; ok {
		return nil, err
	}
	result := &photogen.GenerationResult{EAN: req.EAN}
	result.Product.Name = req.ProductName
	result.Verified.DescriptionVerified = "description for " + req.EAN
	return result, nil
}

func newTestMux(t *testing.T, backend workflow.Backend) *http.ServeMux {
	t.Helper()
	handler, err := New(backend, config.Default(), metrics.New())
	if err != nil {
		t.Fatalf("Failed to build handler: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", handler.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions", handler.HandleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", handler.HandleSessionDetail)
	mux.HandleFunc("DELETE /api/sessions/{id}", handler.HandleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/selection/toggle", handler.HandleToggleSelection)
	mux.HandleFunc("POST /api/sessions/{id}/uploads", handler.HandleUpload)
	mux.HandleFunc("POST /api/sessions/{id}/search-more", handler.HandleSearchMore)
	mux.HandleFunc("POST /api/sessions/{id}/generate", handler.HandleGenerate)
	mux.HandleFunc("POST /api/sessions/{id}/state", handler.HandleStateChange)
	mux.HandleFunc("GET /api/sessions/{id}/export", handler.HandleExport)
	mux.HandleFunc("GET /api/images", handler.HandleImageProxy)
	return mux
}

func defaultBackend() *fakeBackend {
	return &fakeBackend{products: map[string]models.ProductData{
		"111": {
			Product: models.ProductRecord{Name: "Widget", EAN: "111"},
			Sources: []models.ImageSource{
				{ImageURL: "http://img/1.jpg"},
				{ImageURL: "http://img/2.jpg"},
			},
		},
	}}
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, mux *http.ServeMux, eans string) workflow.Snapshot {
	t.Helper()
	w := doJSON(t, mux, "POST", "/api/sessions", map[string]string{"eans": eans})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 creating session, got %d: %s", w.Code, w.Body.String())
	}
	var snap workflow.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	return snap
}

func TestCreateSession(t *testing.T) {
	mux := newTestMux(t, defaultBackend())

	snap := createSession(t, mux, "111")
	if snap.State != workflow.StateValidatingSelection {
		t.Errorf("Expected validating-selection, got %q", snap.State)
	}
	if len(snap.Products) != 1 || len(snap.Products[0].Selected) != 2 {
		t.Errorf("Expected 1 product with 2 pre-selected sources, got %+v", snap.Products)
	}
}

func TestCreateSessionEmptyInput(t *testing.T) {
	mux := newTestMux(t, defaultBackend())

	w := doJSON(t, mux, "POST", "/api/sessions", map[string]string{"eans": "  ,; "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty input, got %d", w.Code)
	}
}

func TestCreateSessionBackendDown(t *testing.T) {
	mux := newTestMux(t, &fakeBackend{loadErr: errors.New("connection refused")})

	w := doJSON(t, mux, "POST", "/api/sessions", map[string]string{"eans": "111"})
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502 when backend is down, got %d", w.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	mux := newTestMux(t, defaultBackend())

	w := doJSON(t, mux, "GET", "/api/sessions/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	w := doJSON(t, mux, "DELETE", "/api/sessions/"+snap.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 deleting session, got %d", w.Code)
	}
	w = doJSON(t, mux, "GET", "/api/sessions/"+snap.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestToggleSelection(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	body := map[string]any{
		"ean":  "111",
		"item": map[string]string{"type": "url", "url": "http://img/1.jpg"},
	}
	w := doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/selection/toggle", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Selected bool `json:"selected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Selected {
		t.Errorf("Expected pre-selected source to be deselected")
	}

	w = doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/selection/toggle", body)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Selected {
		t.Errorf("Expected second toggle to reselect")
	}
}

func TestToggleRejectsBadItem(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	w := doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/selection/toggle", map[string]any{
		"ean":  "111",
		"item": map[string]string{"type": "banana"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown item type, got %d", w.Code)
	}
}

func TestUploadDataURI(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	w := doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/uploads", map[string]string{
		"ean":  "111",
		"data": "data:image/png;base64,iVBORw0KGgo=",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	detail := doJSON(t, mux, "GET", "/api/sessions/"+snap.ID, nil)
	var got workflow.Snapshot
	if err := json.Unmarshal(detail.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if len(got.Products[0].Selected) != 3 {
		t.Errorf("Expected 3 selected items after upload, got %d", len(got.Products[0].Selected))
	}
}

func TestUploadMultipart(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	// Minimal PNG header so content sniffing sees an image.
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("ean", "111"); err != nil {
		t.Fatalf("Failed to write field: %v", err)
	}
	part, err := form.CreateFormFile("files", "photo.png")
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(png); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("Failed to close form: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/sessions/"+snap.ID+"/uploads", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "1 image") {
		t.Errorf("Expected one image added, got %s", w.Body.String())
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("ean", "111")
	part, _ := form.CreateFormFile("files", "notes.txt")
	_, _ = part.Write([]byte("plain text, not an image"))
	_ = form.Close()

	req := httptest.NewRequest("POST", "/api/sessions/"+snap.ID+"/uploads", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-image upload, got %d", w.Code)
	}
}

func TestSearchMore(t *testing.T) {
	backend := defaultBackend()
	backend.sources = []models.ImageSource{{ImageURL: "http://img/9.jpg"}}
	mux := newTestMux(t, backend)
	snap := createSession(t, mux, "111")

	w := doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/search-more", map[string]string{"ean": "111"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Sources []models.ImageSource `json:"sources"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].ImageURL != "http://img/9.jpg" {
		t.Errorf("Unexpected sources: %+v", resp.Sources)
	}
}

// waitForResults polls the session until the background generation run lands.
func waitForResults(t *testing.T, mux *http.ServeMux, id string) workflow.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := doJSON(t, mux, "GET", "/api/sessions/"+id, nil)
		var snap workflow.Snapshot
		if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
			t.Fatalf("Failed to decode snapshot: %v", err)
		}
		if snap.State == workflow.StateResults {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Generation never reached results state")
	return workflow.Snapshot{}
}

func TestGenerateAndExport(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	w := doJSON(t, mux, "GET", "/api/sessions/"+snap.ID+"/export", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 exporting before generation, got %d", w.Code)
	}

	w = doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/generate", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	final := waitForResults(t, mux, snap.ID)
	if len(final.Results) != 1 || final.Results[0].Description != "description for 111" {
		t.Errorf("Unexpected results: %+v", final.Results)
	}

	w = doJSON(t, mux, "GET", "/api/sessions/"+snap.ID+"/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 exporting results, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Expected text/csv content type, got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "photogen-seo-export.csv") {
		t.Errorf("Expected download filename in disposition, got %q", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "\uFEFF") {
		t.Errorf("Expected CSV to start with a UTF-8 BOM")
	}
}

func TestGenerateRejectedOutsideValidation(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	w := doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/state", map[string]string{"state": "collecting-input"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for back transition, got %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/generate", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 generating outside validation, got %d", w.Code)
	}
}

func TestStateChangeRejectsIllegalTransition(t *testing.T) {
	mux := newTestMux(t, defaultBackend())
	snap := createSession(t, mux, "111")

	w := doJSON(t, mux, "POST", "/api/sessions/"+snap.ID+"/state", map[string]string{"state": "results"})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for illegal transition, got %d", w.Code)
	}
}

func TestImageProxy(t *testing.T) {
	hits := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer upstream.Close()

	mux := newTestMux(t, defaultBackend())

	w := doJSON(t, mux, "GET", "/api/images?url="+upstream.URL+"/a.jpg", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Expected image/jpeg, got %q", ct)
	}
	if w.Body.String() != "jpeg-bytes" {
		t.Errorf("Unexpected body: %q", w.Body.String())
	}

	// Second request must come from the cache.
	w = doJSON(t, mux, "GET", "/api/images?url="+upstream.URL+"/a.jpg", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from cache, got %d", w.Code)
	}
	if hits != 1 {
		t.Errorf("Expected 1 upstream fetch, got %d", hits)
	}
}

func TestImageProxyRejectsBadURL(t *testing.T) {
	mux := newTestMux(t, defaultBackend())

	for _, raw := range []string{"", "ftp://host/a.jpg", "not-a-url"} {
		w := doJSON(t, mux, "GET", "/api/images?url="+raw, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", raw, w.Code)
		}
	}
}
