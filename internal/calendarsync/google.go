package calendarsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/serenbook/platform/pkg/logging"
)

const googleBaseURL = "https://www.googleapis.com/calendar/v3"

// ProviderName tags blocks and links created from Google Calendar.
const ProviderName = "google"

// Event is the provider-neutral shape of one external calendar entry.
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// ProviderClient is the external calendar surface the reconciler talks to.
type ProviderClient interface {
	CreateEvent(ctx context.Context, professionalID uuid.UUID, ev Event) (string, error)
	UpdateEvent(ctx context.Context, professionalID uuid.UUID, eventID string, ev Event) error
	DeleteEvent(ctx context.Context, professionalID uuid.UUID, eventID string) error
	ListEvents(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Event, error)
}

// GoogleClient talks to the Google Calendar v3 REST API with per-professional
// OAuth tokens.
type GoogleClient struct {
	oauth      TokenSourceProvider
	logger     *logging.Logger
	baseURL    string
	calendarID string
	timeout    time.Duration
}

// NewGoogleClient creates a client against the primary calendar.
func NewGoogleClient(oauth TokenSourceProvider, logger *logging.Logger) *GoogleClient {
	if oauth == nil {
		panic("calendarsync: token source provider required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleClient{
		oauth:      oauth,
		logger:     logger,
		baseURL:    googleBaseURL,
		calendarID: "primary",
		timeout:    15 * time.Second,
	}
}

// WithBaseURL overrides the API base URL (for testing).
func (c *GoogleClient) WithBaseURL(baseURL string) *GoogleClient {
	if baseURL != "" {
		c.baseURL = baseURL
	}
	return c
}

// CreateEvent inserts an event and returns the provider-assigned identifier.
func (c *GoogleClient) CreateEvent(ctx context.Context, professionalID uuid.UUID, ev Event) (string, error) {
	client, err := c.httpClient(ctx, professionalID)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(toGoogleEvent(ev))
	if err != nil {
		return "", fmt.Errorf("calendarsync: marshal event: %w", err)
	}
	insertURL := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, c.calendarID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, insertURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("calendarsync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendarsync: insert event: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("calendarsync: decode insert response: %w", err)
	}
	if created.ID == "" {
		return "", fmt.Errorf("calendarsync: insert response missing event id")
	}
	return created.ID, nil
}

// UpdateEvent rewrites an existing event in place.
func (c *GoogleClient) UpdateEvent(ctx context.Context, professionalID uuid.UUID, eventID string, ev Event) error {
	client, err := c.httpClient(ctx, professionalID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(toGoogleEvent(ev))
	if err != nil {
		return fmt.Errorf("calendarsync: marshal event: %w", err)
	}
	updateURL := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, c.calendarID, url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, updateURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("calendarsync: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calendarsync: update event: %w", err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// DeleteEvent removes an event; a 404/410 counts as already deleted.
func (c *GoogleClient) DeleteEvent(ctx context.Context, professionalID uuid.UUID, eventID string) error {
	client, err := c.httpClient(ctx, professionalID)
	if err != nil {
		return err
	}
	deleteURL := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, c.calendarID, url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return fmt.Errorf("calendarsync: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calendarsync: delete event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil
	}
	return checkStatus(resp)
}

// ListEvents returns single events in the window, expanded from recurrences.
func (c *GoogleClient) ListEvents(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Event, error) {
	client, err := c.httpClient(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("timeMin", from.UTC().Format(time.RFC3339))
	query.Set("timeMax", to.UTC().Format(time.RFC3339))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	listURL := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, c.calendarID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("calendarsync: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendarsync: list events: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var payload struct {
		Items []googleEvent `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("calendarsync: decode list response: %w", err)
	}

	events := make([]Event, 0, len(payload.Items))
	for _, item := range payload.Items {
		ev, ok := fromGoogleEvent(item)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (c *GoogleClient) httpClient(ctx context.Context, professionalID uuid.UUID) (*http.Client, error) {
	source, err := c.oauth.TokenSource(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if _, err := source.Token(); err != nil {
		c.logger.Warn("calendar token refresh failed", "professional_id", professionalID, "error", err)
		return nil, ErrAuthExpired
	}
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauthTransport{
			base:   http.DefaultTransport,
			source: source,
		},
	}, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthExpired
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("calendarsync: provider status %d: %s", resp.StatusCode, string(body))
}

type oauthTransport struct {
	base   http.RoundTripper
	source oauth2.TokenSource
}

func (t *oauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return t.base.RoundTrip(req)
}

type googleEvent struct {
	ID      string `json:"id,omitempty"`
	Summary string `json:"summary"`
	Start   struct {
		DateTime string `json:"dateTime,omitempty"`
		Date     string `json:"date,omitempty"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime,omitempty"`
		Date     string `json:"date,omitempty"`
	} `json:"end"`
}

func toGoogleEvent(ev Event) googleEvent {
	var out googleEvent
	out.Summary = ev.Summary
	if ev.AllDay {
		out.Start.Date = ev.Start.Format("2006-01-02")
		// Google all-day events end on the day after the last blocked day.
		out.End.Date = ev.End.Format("2006-01-02")
		return out
	}
	out.Start.DateTime = ev.Start.UTC().Format(time.RFC3339)
	out.End.DateTime = ev.End.UTC().Format(time.RFC3339)
	return out
}

func fromGoogleEvent(item googleEvent) (Event, bool) {
	ev := Event{ID: item.ID, Summary: item.Summary}
	switch {
	case item.Start.DateTime != "" && item.End.DateTime != "":
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return Event{}, false
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return Event{}, false
		}
		ev.Start = start.UTC()
		ev.End = end.UTC()
	case item.Start.Date != "" && item.End.Date != "":
		start, err := time.Parse("2006-01-02", item.Start.Date)
		if err != nil {
			return Event{}, false
		}
		end, err := time.Parse("2006-01-02", item.End.Date)
		if err != nil {
			return Event{}, false
		}
		ev.Start = start
		ev.End = end
		ev.AllDay = true
	default:
		return Event{}, false
	}
	return ev, true
}
