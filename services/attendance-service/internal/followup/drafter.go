package followup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

type Request struct {
	Name   string `json:"name"`
	Church string `json:"church"`
	Time   string `json:"time"`
	Notes  string `json:"notes,omitempty"`
}

// Drafter writes the confirmation message sent to a visitor.
type Drafter interface {
	Draft(ctx context.Context, req Request) (string, error)
	ProviderID() string
}

type TemplateDrafter struct{}

func (TemplateDrafter) ProviderID() string {
	return "followup-template"
}

func (TemplateDrafter) Draft(_ context.Context, req Request) (string, error) {
	return Template(req), nil
}

func Template(req Request) string {
	return fmt.Sprintf("Hola %s, te escribimos de la Universal para confirmar tu visita a la sede %s a las %s. ¡Te esperamos!",
		strings.TrimSpace(req.Name), strings.TrimSpace(req.Church), strings.TrimSpace(req.Time))
}

type WebhookDrafter struct {
	url     string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewWebhookDrafter posts draft requests to url, at most ratePerMinute per minute.
func NewWebhookDrafter(url, token string, ratePerMinute int, logger *slog.Logger) *WebhookDrafter {
	if ratePerMinute <= 0 {
		ratePerMinute = 30
	}
	return &WebhookDrafter{
		url:   strings.TrimSpace(url),
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), 1),
		logger:  logger,
	}
}

func (d *WebhookDrafter) ProviderID() string {
	return "followup-webhook"
}

// Draft never fails: any webhook error falls back to the template text.
func (d *WebhookDrafter) Draft(ctx context.Context, req Request) (string, error) {
	msg, err := d.call(ctx, req)
	if err != nil {
		d.logger.Warn("followup webhook failed, using template", "err", err)
		return Template(req), nil
	}
	return msg, nil
}

func (d *WebhookDrafter) call(ctx context.Context, req Request) (string, error) {
	if d.url == "" {
		return "", errors.New("followup webhook url not configured")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.token)
	}
	resp, err := d.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("followup webhook returned %d", resp.StatusCode)
	}
	var out struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode followup response: %w", err)
	}
	if strings.TrimSpace(out.Message) == "" {
		return "", errors.New("followup webhook returned an empty message")
	}
	return out.Message, nil
}
