package jenkins

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "ci-bot", "token123", 5*time.Second, testLogger())
}

func TestGetBuildTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 10, 17, 39, 0, 0, time.UTC)
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/3.0.0/job/mr3.0.0_release/26/api/json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("tree") != "number,timestamp" {
			t.Errorf("unexpected tree %q", r.URL.RawQuery)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ci-bot" || pass != "token123" {
			t.Errorf("missing or wrong basic auth: %q/%q", user, pass)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"number":26,"timestamp":1741628340000}`))
	})

	got, err := client.GetBuildTimestamp(context.Background(), "3.0.0/mr3.0.0_release", 26)
	if err != nil {
		t.Fatalf("GetBuildTimestamp: %v", err)
	}
	if !got.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", got, want)
	}
}

func TestGetBuildTimestampErrorStatus(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.GetBuildTimestamp(context.Background(), "3.0.0/mr3.0.0_release", 999)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Op != "build_info" {
		t.Fatalf("got %+v", apiErr)
	}
}

func TestGetBuildTimestampMissingTimestamp(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"number":26}`))
	})

	_, err := client.GetBuildTimestamp(context.Background(), "3.0.0/mr3.0.0_release", 26)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for missing timestamp, got %v", err)
	}
}

func TestGetBuildTimestampMalformedBody(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>login page</html>`))
	})

	_, err := client.GetBuildTimestamp(context.Background(), "3.0.0/mr3.0.0_release", 26)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError for malformed body, got %v", err)
	}
}

func TestListBuilds(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/3.0.0/job/mr3.0.0_release/api/json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("tree") != "builds[number,result,timestamp]{0,2}" {
			t.Errorf("unexpected tree %q", r.URL.Query().Get("tree"))
		}
		w.Write([]byte(`{"builds":[
			{"number":27,"result":"FAILURE","timestamp":1741714740000},
			{"number":26,"result":"SUCCESS","timestamp":1741628340000}
		]}`))
	})

	builds, err := client.ListBuilds(context.Background(), "3.0.0/mr3.0.0_release", 2)
	if err != nil {
		t.Fatalf("ListBuilds: %v", err)
	}
	if len(builds) != 2 {
		t.Fatalf("got %d builds, want 2", len(builds))
	}
	if builds[0].Number != 27 || builds[0].Result != "FAILURE" {
		t.Fatalf("builds[0] = %+v", builds[0])
	}
	if got := builds[1].Timestamp; !got.Equal(time.Date(2025, 3, 10, 17, 39, 0, 0, time.UTC)) {
		t.Fatalf("builds[1].Timestamp = %v", got)
	}
}

func TestConsoleText(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/3.0.0/job/mr3.0.0_release/26/consoleText" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte("Started by timer\nCopying to \\\\nas01\\releases\\3.0.0\\250310\\26\nFinished: SUCCESS\n"))
	})

	text, err := client.ConsoleText(context.Background(), "3.0.0/mr3.0.0_release", 26)
	if err != nil {
		t.Fatalf("ConsoleText: %v", err)
	}
	if text == "" || text[:10] != "Started by" {
		t.Fatalf("unexpected console text %q", text)
	}
}

func TestJobURLPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"3.0.0/mr3.0.0_release", "/job/3.0.0/job/mr3.0.0_release"},
		{"/3.0.0/mr3.0.0_release/", "/job/3.0.0/job/mr3.0.0_release"},
		{"single", "/job/single"},
		{"a//b", "/job/a/job/b"},
	}
	for _, tc := range cases {
		if got := jobURLPath(tc.in); got != tc.want {
			t.Errorf("jobURLPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
