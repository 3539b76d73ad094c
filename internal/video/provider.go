// Package video wraps the external video-conferencing provider behind a
// narrow session-creation interface.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/pkg/logging"
)

// Session is one provisioned consultation room.
type Session struct {
	ID      string `json:"session_id"`
	Token   string `json:"token"`
	JoinURL string `json:"join_url"`
}

// Provider creates sessions on the conferencing backend. Calls must respect
// ctx deadlines; the booking coordinator wraps every call in a timeout and
// substitutes a placeholder on failure rather than failing the booking.
type Provider interface {
	CreateSession(ctx context.Context, key string) (*Session, error)
}

// HTTPProvider talks to the provider's REST API.
type HTTPProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPProvider creates a provider client. The client timeout is a
// backstop; per-call deadlines come from ctx.
func NewHTTPProvider(apiKey, baseURL string, logger *logging.Logger) *HTTPProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// CreateSession provisions one room keyed by the appointment identifier.
func (p *HTTPProvider) CreateSession(ctx context.Context, key string) (*Session, error) {
	if p == nil || p.apiKey == "" || p.baseURL == "" {
		return nil, fmt.Errorf("video: provider not configured")
	}

	payload, err := json.Marshal(map[string]string{"reference": key})
	if err != nil {
		return nil, fmt.Errorf("video: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/sessions", strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("video: request build: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var body struct {
			Errors []struct {
				Detail string `json:"detail"`
			} `json:"errors"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("video: status %d: %+v", resp.StatusCode, body.Errors)
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("video: decode: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("video: provider returned empty session id")
	}
	return &session, nil
}

// PlaceholderSession synthesizes an obviously-demo session used when the
// provider is down. The booking still succeeds with this attached.
func PlaceholderSession(key string) *Session {
	suffix := uuid.NewString()[:8]
	return &Session{
		ID:      "demo-" + suffix,
		Token:   "demo-token-" + suffix,
		JoinURL: "https://meet.invalid/demo/" + key,
	}
}

// StubProvider returns canned sessions or errors; used in tests.
type StubProvider struct {
	Session *Session
	Err     error
	Delay   time.Duration
	Calls   int
}

// CreateSession returns the configured session or error after Delay.
func (s *StubProvider) CreateSession(ctx context.Context, key string) (*Session, error) {
	s.Calls++
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Session != nil {
		copied := *s.Session
		return &copied, nil
	}
	return &Session{ID: "sess-" + key, Token: "tok-" + key, JoinURL: "https://meet.example/" + key}, nil
}

var (
	_ Provider = (*HTTPProvider)(nil)
	_ Provider = (*StubProvider)(nil)
)
