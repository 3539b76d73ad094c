package video

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/medlink/telehealth-platform/pkg/logging"
)

func TestHTTPProviderCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["reference"] != "appt-1" {
			t.Fatalf("unexpected reference %q", body["reference"])
		}
		json.NewEncoder(w).Encode(Session{ID: "s-1", Token: "t-1", JoinURL: "https://meet.example/s-1"})
	}))
	defer srv.Close()

	provider := NewHTTPProvider("key-123", srv.URL, logging.Default())
	session, err := provider.CreateSession(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.ID != "s-1" || session.JoinURL == "" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestHTTPProviderSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"errors":[{"detail":"upstream down"}]}`))
	}))
	defer srv.Close()

	provider := NewHTTPProvider("key-123", srv.URL, logging.Default())
	if _, err := provider.CreateSession(context.Background(), "appt-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHTTPProviderHonorsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	provider := NewHTTPProvider("key-123", srv.URL, logging.Default())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := provider.CreateSession(ctx, "appt-1"); err == nil {
		t.Fatal("expected deadline error")
	}
}

func TestPlaceholderSessionIsObviouslyDemo(t *testing.T) {
	session := PlaceholderSession("appt-9")
	if !strings.HasPrefix(session.ID, "demo-") {
		t.Fatalf("expected demo-prefixed id, got %s", session.ID)
	}
	if !strings.Contains(session.JoinURL, "appt-9") {
		t.Fatalf("expected key in join url, got %s", session.JoinURL)
	}
}
