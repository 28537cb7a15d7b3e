package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/md-rashed-zaman/ecochurch/libs/httpx"
	"github.com/md-rashed-zaman/ecochurch/services/attendance-service/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client talks to the attendance service REST API.
type Client struct {
	baseURL string
	http    *http.Client
	user    model.User
}

// APIError is a non-2xx answer carrying the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// As returns a copy that sends u as the acting user.
func (c *Client) As(u model.User) *Client {
	cp := *c
	cp.user = u
	return &cp
}

// HistoryQuery mirrors the history view filters.
type HistoryQuery struct {
	Church string
	Text   string
	Status model.Status
}

func (c *Client) List(ctx context.Context) ([]model.Appointment, error) {
	var out []model.Appointment
	err := c.do(ctx, http.MethodGet, "/api/appointments", nil, &out)
	return out, err
}

// FetchAppointments lets a poller use the REST API as its source.
func (c *Client) FetchAppointments(ctx context.Context) ([]model.Appointment, error) {
	return c.List(ctx)
}

func (c *Client) History(ctx context.Context, q HistoryQuery) ([]model.Appointment, error) {
	v := url.Values{}
	if q.Church != "" {
		v.Set("church", q.Church)
	}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	path := "/api/views/history"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out []model.Appointment
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, f model.AppointmentFields) (model.Appointment, error) {
	var out model.Appointment
	err := c.do(ctx, http.MethodPost, "/api/appointments", f, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, p model.AppointmentPatch) (model.Appointment, error) {
	var out model.Appointment
	err := c.do(ctx, http.MethodPut, "/api/appointments/"+url.PathEscape(id), p, &out)
	return out, err
}

func (c *Client) Complete(ctx context.Context, id string) (model.Appointment, error) {
	var out model.Appointment
	err := c.do(ctx, http.MethodPost, "/api/appointments/"+url.PathEscape(id)+"/complete", nil, &out)
	return out, err
}

func (c *Client) Export(ctx context.Context) (string, error) {
	var out struct {
		Blob string `json:"blob"`
	}
	err := c.do(ctx, http.MethodGet, "/api/export", nil, &out)
	return out.Blob, err
}

func (c *Client) Import(ctx context.Context, blob string) (int, error) {
	var out struct {
		Imported int `json:"imported"`
	}
	err := c.do(ctx, http.MethodPost, "/api/import", map[string]string{"blob": blob}, &out)
	return out.Imported, err
}

// PushAppointments replaces the server's collection with apps.
func (c *Client) PushAppointments(ctx context.Context, apps []model.Appointment) error {
	if apps == nil {
		apps = []model.Appointment{}
	}
	raw, err := json.Marshal(apps)
	if err != nil {
		return err
	}
	_, err = c.Import(ctx, string(raw))
	return err
}

func (c *Client) Register(ctx context.Context, name, identifier, password string) (model.User, error) {
	var out model.User
	body := map[string]string{"name": name, "identifier": identifier, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, identifier, password string) (model.User, error) {
	var out model.User
	body := map[string]string{"identifier": identifier, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &out)
	return out, err
}

func (c *Client) UpdateProfile(ctx context.Context, id, name, avatar string) (model.User, error) {
	var out model.User
	body := map[string]string{"name": name, "avatar": avatar}
	err := c.do(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id)+"/profile", body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user.ID != "" {
		req.Header.Set(httpx.UserIDHeader, c.user.ID)
		req.Header.Set(httpx.UserNameHeader, c.user.Name)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
