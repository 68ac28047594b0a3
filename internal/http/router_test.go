package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/buildboard/buildboard/internal/domain"
	"github.com/buildboard/buildboard/internal/repository"
	"github.com/buildboard/buildboard/internal/service/jenkins"
)

type fakeResolver struct {
	result       domain.ExtractionResult
	projectPaths []string
	buildNumbers []int
}

func (f *fakeResolver) Resolve(ctx context.Context, projectPath string, buildNumber int) domain.ExtractionResult {
	f.projectPaths = append(f.projectPaths, projectPath)
	f.buildNumbers = append(f.buildNumbers, buildNumber)
	return f.result
}

type fakeBuildLister struct {
	builds []jenkins.BuildInfo
	err    error
}

func (f *fakeBuildLister) ListBuilds(ctx context.Context, projectPath string, limit int) ([]jenkins.BuildInfo, error) {
	return f.builds, f.err
}

type fakeRecords struct {
	records map[int]*domain.DeploymentRecord
	recent  []domain.DeploymentRecord
	listErr error
}

func (f *fakeRecords) FindDeploymentPath(ctx context.Context, projectPath, version string, buildNumber int) (*domain.DeploymentRecord, error) {
	if rec, ok := f.records[buildNumber]; ok {
		return rec, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRecords) UpsertDeploymentPath(ctx context.Context, record *domain.DeploymentRecord) error {
	return nil
}

func (f *fakeRecords) ListRecentDeploymentPaths(ctx context.Context, limit int) ([]domain.DeploymentRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.recent, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, resolver *fakeResolver, builds *fakeBuildLister, records *fakeRecords, token string) *Router {
	t.Helper()
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	if builds == nil {
		builds = &fakeBuildLister{}
	}
	if records == nil {
		records = &fakeRecords{}
	}
	r := NewRouter(testLogger(), resolver, builds, records, nil, nil, token, nil)
	t.Cleanup(r.Close)
	return r
}

func TestHandleResolve(t *testing.T) {
	resolver := &fakeResolver{result: domain.ExtractionResult{
		NASPath:      "/nas/releases/3.0.0/250311/26",
		DownloadFile: "V3.0.0_250310_0843.tar.gz",
		Source:       domain.SourceShare,
	}}
	router := newTestRouter(t, resolver, nil, nil, "")

	body := strings.NewReader(`{"project_path":"3.0.0/mr3.0.0_release","build_number":26}`)
	req := httptest.NewRequest(http.MethodPost, "/api/deployments/resolve", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(resolver.projectPaths) != 1 || resolver.projectPaths[0] != "3.0.0/mr3.0.0_release" || resolver.buildNumbers[0] != 26 {
		t.Fatalf("resolver called with %v %v", resolver.projectPaths, resolver.buildNumbers)
	}
	var got domain.ExtractionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.NASPath != resolver.result.NASPath || got.Source != domain.SourceShare {
		t.Fatalf("response = %+v", got)
	}
}

func TestHandleResolveValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty project path", `{"project_path":"","build_number":26}`},
		{"zero build number", `{"project_path":"3.0.0/mr3.0.0_release","build_number":0}`},
		{"negative build number", `{"project_path":"3.0.0/mr3.0.0_release","build_number":-5}`},
		{"malformed json", `{not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := &fakeResolver{}
			router := newTestRouter(t, resolver, nil, nil, "")

			req := httptest.NewRequest(http.MethodPost, "/api/deployments/resolve", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if len(resolver.projectPaths) != 0 {
				t.Fatal("resolver must not run for invalid input")
			}
		})
	}
}

func TestHandleResolveMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, nil, nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/deployments/resolve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleBuildsDecoratesResolved(t *testing.T) {
	ts := time.Date(2025, 3, 10, 17, 39, 0, 0, time.UTC)
	builds := &fakeBuildLister{builds: []jenkins.BuildInfo{
		{Number: 27, Result: "FAILURE", Timestamp: ts.Add(24 * time.Hour)},
		{Number: 26, Result: "SUCCESS", Timestamp: ts},
	}}
	records := &fakeRecords{records: map[int]*domain.DeploymentRecord{
		26: {
			ProjectPath:  "3.0.0/mr3.0.0_release",
			Version:      "3.0.0",
			BuildNumber:  26,
			NASPath:      "/nas/releases/3.0.0/250311/26",
			DownloadFile: "V3.0.0_250310_0843.tar.gz",
		},
	}}
	router := newTestRouter(t, nil, builds, records, "")

	req := httptest.NewRequest(http.MethodGet, "/api/builds/3.0.0/mr3.0.0_release", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries", len(got))
	}
	if got[0]["resolved"] != false {
		t.Fatalf("unresolved build decorated: %v", got[0])
	}
	if got[1]["resolved"] != true || got[1]["nasPath"] != "/nas/releases/3.0.0/250311/26" {
		t.Fatalf("resolved build missing decoration: %v", got[1])
	}
}

func TestHandleBuildsUpstreamFailure(t *testing.T) {
	builds := &fakeBuildLister{err: &jenkins.APIError{Op: "build_history", Status: 503}}
	router := newTestRouter(t, nil, builds, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/api/builds/3.0.0/mr3.0.0_release", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestHandleRecent(t *testing.T) {
	records := &fakeRecords{recent: []domain.DeploymentRecord{
		{ProjectPath: "3.0.0/mr3.0.0_release", Version: "3.0.0", BuildNumber: 26, NASPath: "/nas/releases/3.0.0/250311/26"},
	}}
	router := newTestRouter(t, nil, nil, records, "")

	req := httptest.NewRequest(http.MethodGet, "/api/deployments/recent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 1 || got[0]["nasPath"] != "/nas/releases/3.0.0/250311/26" {
		t.Fatalf("response = %v", got)
	}
}

func TestRequireAuth(t *testing.T) {
	router := newTestRouter(t, nil, nil, &fakeRecords{}, "secret-token")

	cases := []struct {
		name     string
		decorate func(*http.Request)
		want     int
	}{
		{"missing token", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong token", func(r *http.Request) { r.Header.Set("X-Service-Token", "wrong") }, http.StatusUnauthorized},
		{"header token", func(r *http.Request) { r.Header.Set("X-Service-Token", "secret-token") }, http.StatusOK},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-token") }, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/deployments/recent", nil)
			tc.decorate(req)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestQueryTokenAuth(t *testing.T) {
	router := newTestRouter(t, nil, nil, &fakeRecords{}, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/api/deployments/recent?service_token=secret-token", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealthzNoDatabaseCheck(t *testing.T) {
	router := newTestRouter(t, nil, nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["status"] != "ok" {
		t.Fatalf("payload = %v", got)
	}
}

func TestHealthzDegraded(t *testing.T) {
	resolver := &fakeResolver{}
	r := NewRouter(testLogger(), resolver, &fakeBuildLister{}, &fakeRecords{}, nil, nil, "", func(context.Context) error {
		return context.DeadlineExceeded
	})
	t.Cleanup(r.Close)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestResolveRateLimited(t *testing.T) {
	router := newTestRouter(t, &fakeResolver{}, nil, nil, "")

	var last *httptest.ResponseRecorder
	for i := 0; i < rateLimitResolve+1; i++ {
		body := strings.NewReader(`{"project_path":"3.0.0/mr3.0.0_release","build_number":26}`)
		req := httptest.NewRequest(http.MethodPost, "/api/deployments/resolve", body)
		req.RemoteAddr = "10.1.2.3:5555"
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 after exceeding the window", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatal("rate-limited response missing Retry-After header")
	}
}

func TestWebsocketRequiresProjectPath(t *testing.T) {
	router := newTestRouter(t, nil, nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/ws/resolutions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
