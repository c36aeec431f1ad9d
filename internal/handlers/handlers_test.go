package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"thumbcache/internal/identity"
	"thumbcache/internal/store"
	"thumbcache/internal/thumbcache"
	"thumbcache/internal/thumbnail"

	"github.com/gorilla/mux"
)

type stubGenerator struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (g *stubGenerator) Generate(_ context.Context, src identity.Source) thumbnail.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return thumbnail.Result{}
	}
	data := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte(src.URL+strings.Repeat("x", 100)))
	return thumbnail.Result{Data: data, Width: 64, Height: 48}
}

type downBackend struct{ store.MemoryBackend }

func (downBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, store.ErrBackendUnavailable
}

func newTestRouter(t *testing.T, backend store.Backend, gen thumbcache.Generator) (*mux.Router, *thumbcache.Service) {
	t.Helper()
	svc := thumbcache.New(store.New(backend), gen, thumbcache.Options{Workers: 2})
	r := mux.NewRouter()
	New(svc, backend.Name()).Register(r)
	return r, svc
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) thumbcache.Result {
	t.Helper()
	var res thumbcache.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

const videoBody = `{"id":"v1","kind":"video","primaryUrl":"https://cdn.example.com/clip.mp4?sig=abc"}`

func TestEnsureReturnsGeneratedDataURI(t *testing.T) {
	gen := &stubGenerator{}
	r, _ := newTestRouter(t, store.NewMemoryBackend(), gen)

	rec := do(r, http.MethodPost, "/api/thumbnails/ensure", videoBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	res := decodeResult(t, rec)
	if res.Status != thumbcache.StatusGenerated || !strings.HasPrefix(res.URL, "data:image/jpeg;base64,") {
		t.Fatalf("ensure = %+v", res)
	}

	rec = do(r, http.MethodPost, "/api/thumbnails/lookup", videoBody)
	if res := decodeResult(t, rec); res.Status != thumbcache.StatusCached {
		t.Errorf("lookup after ensure = %q, want cached", res.Status)
	}

	rec = do(r, http.MethodGet, "/api/thumbnails/state/v1", "")
	var state map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if state["state"] != string(thumbcache.StateCached) {
		t.Errorf("state = %q, want cached", state["state"])
	}

	rec = do(r, http.MethodPost, "/api/thumbnails/refresh", videoBody)
	if res := decodeResult(t, rec); res.Status != thumbcache.StatusGenerated {
		t.Errorf("refresh = %q, want generated", res.Status)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
}

func TestThumbnailRequestValidation(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBackend(), &stubGenerator{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/api/thumbnails/ensure", `{"kind":`},
		{"unknown kind", "/api/thumbnails/lookup", `{"kind":"audio","primaryUrl":"https://x/a.mp3"}`},
		{"no url", "/api/thumbnails/ensure", `{"kind":"video"}`},
		{"oversized body", "/api/thumbnails/ensure", `{"kind":"video","primaryUrl":"` + strings.Repeat("a", maxBodyBytes) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(r, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("body %q has no error field", rec.Body.String())
			}
		})
	}
}

func TestBatchThumbnails(t *testing.T) {
	gen := &stubGenerator{}
	r, svc := newTestRouter(t, store.NewMemoryBackend(), gen)

	body := `[
		{"id":"b1","kind":"video","primaryUrl":"https://x/b1.mp4"},
		{"id":"p1","kind":"photo","primaryUrl":"https://x/p1.jpg"},
		{"id":"b1","kind":"video","primaryUrl":"https://x/b1.mp4"},
		{"id":"s1","kind":"video","primaryUrl":"https://x/s1.mp4","serverThumbnail":"https://x/s1.jpg"},
		{"id":"b2","kind":"video","primaryUrl":"https://x/b2.mp4"}
	]`
	rec := do(r, http.MethodPost, "/api/thumbnails/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var items []BatchItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		id     string
		status thumbcache.Status
	}{
		{"b1", thumbcache.StatusGenerated},
		{"p1", thumbcache.StatusImage},
		{"b1", thumbcache.StatusGenerated},
		{"s1", thumbcache.StatusServer},
		{"b2", thumbcache.StatusGenerated},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].Media.ID != w.id || items[i].Result.Status != w.status {
			t.Errorf("item %d = %s/%s, want %s/%s", i, items[i].Media.ID, items[i].Result.Status, w.id, w.status)
		}
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
	if st := svc.State("b2"); st != thumbcache.StateCached {
		t.Errorf("state of b2 = %q, want cached", st)
	}

	tests := []struct {
		name string
		body string
	}{
		{"not an array", `{"kind":"video"}`},
		{"unknown kind", `[{"kind":"audio","primaryUrl":"https://x/a.mp3"}]`},
		{"no url", `[{"kind":"video"}]`},
		{"too many items", "[" + strings.Repeat(`{"kind":"photo","primaryUrl":"p"},`, maxBatchItems) + `{"kind":"photo","primaryUrl":"p"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(r, http.MethodPost, "/api/thumbnails/batch", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestImageAndServerThumbnailPassThrough(t *testing.T) {
	gen := &stubGenerator{}
	r, _ := newTestRouter(t, store.NewMemoryBackend(), gen)

	res := decodeResult(t, do(r, http.MethodPost, "/api/thumbnails/ensure",
		`{"kind":"photo","primaryUrl":"https://x/p.jpg"}`))
	if res.Status != thumbcache.StatusImage || res.URL != "https://x/p.jpg" {
		t.Errorf("photo = %+v", res)
	}

	res = decodeResult(t, do(r, http.MethodPost, "/api/thumbnails/ensure",
		`{"kind":"video","primaryUrl":"https://x/v.mp4","serverThumbnail":"https://x/v.jpg"}`))
	if res.Status != thumbcache.StatusServer || res.URL != "https://x/v.jpg" {
		t.Errorf("server thumbnail = %+v", res)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times", gen.calls)
	}
}

func TestSaveThumbnail(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBackend(), &stubGenerator{fail: true})

	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	data, err := thumbnail.EncodeDataURI(img, thumbnail.DefaultQuality)
	if err != nil {
		t.Fatal(err)
	}

	media := `{"id":"s1","kind":"video","primaryUrl":"https://x/s.mp4"}`

	rec := do(r, http.MethodPut, "/api/thumbnails", `{"media":`+media+`,"data":"data:image/jpeg;base64,AAAA"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid payload status = %d, want 400", rec.Code)
	}

	rec = do(r, http.MethodPut, "/api/thumbnails", `{"media":`+media+`,"data":"`+data+`"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body.String())
	}

	res := decodeResult(t, do(r, http.MethodPost, "/api/thumbnails/lookup", media))
	if res.Status != thumbcache.StatusCached || res.URL != data {
		t.Errorf("lookup after save = %q", res.Status)
	}
}

func TestCacheMaintenanceEndpoints(t *testing.T) {
	r, svc := newTestRouter(t, store.NewMemoryBackend(), &stubGenerator{})
	do(r, http.MethodPost, "/api/thumbnails/ensure", videoBody)

	rec := do(r, http.MethodGet, "/api/cache/debug", "")
	var dump DebugResponse
	if err := json.NewDecoder(rec.Body).Decode(&dump); err != nil {
		t.Fatal(err)
	}
	if dump.Namespace != store.Namespace || len(dump.Record.Entries) != 1 || dump.Stats.Entries != 1 {
		t.Errorf("debug dump = %+v", dump)
	}

	rec = do(r, http.MethodPost, "/api/cache/cleanup", "")
	if strings.TrimSpace(rec.Body.String()) != `{"removed":0}` {
		t.Errorf("cleanup body = %s", rec.Body.String())
	}

	rec = do(r, http.MethodPost, "/api/cache/migrate", "")
	if strings.TrimSpace(rec.Body.String()) != `{"migrated":0}` {
		t.Errorf("migrate body = %s", rec.Body.String())
	}

	rec = do(r, http.MethodDelete, "/api/cache", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear status = %d", rec.Code)
	}
	if st := svc.GetStats(); st.Entries != 0 {
		t.Errorf("entries after clear = %d", st.Entries)
	}
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		backend    store.Backend
		wantStatus int
		wantHealth string
	}{
		{"healthy", store.NewMemoryBackend(), http.StatusOK, statusHealthy},
		{"backend down", &downBackend{}, http.StatusServiceUnavailable, statusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, tt.backend, &stubGenerator{})

			for _, path := range []string{"/health", "/healthz"} {
				rec := do(r, http.MethodGet, path, "")
				if rec.Code != tt.wantStatus {
					t.Errorf("%s status = %d, want %d", path, rec.Code, tt.wantStatus)
				}
				var resp HealthResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatal(err)
				}
				if resp.Status != tt.wantHealth {
					t.Errorf("%s health = %q, want %q", path, resp.Status, tt.wantHealth)
				}
			}

			if rec := do(r, http.MethodGet, "/livez", ""); rec.Code != http.StatusOK {
				t.Errorf("livez status = %d", rec.Code)
			}
		})
	}
}

func TestVersionAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBackend(), &stubGenerator{})

	rec := do(r, http.MethodGet, "/version", "")
	if rec.Header().Get("Cache-Control") != "no-cache" || !strings.Contains(rec.Body.String(), `"goVersion"`) {
		t.Errorf("version = %s", rec.Body.String())
	}

	rec = do(r, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "thumbcache_") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestMethodMismatchIsRejected(t *testing.T) {
	r, _ := newTestRouter(t, store.NewMemoryBackend(), &stubGenerator{})
	rec := do(r, http.MethodGet, "/api/thumbnails/ensure", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
