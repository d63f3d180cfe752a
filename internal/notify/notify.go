package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	appLog "remindd/internal/log"
)

// Notification is a displayable message. Actions are button labels;
// button clicks come back through the HTTP action surface carrying the
// notification id and the action index.
type Notification struct {
	Title              string   `json:"title"`
	Message            string   `json:"message"`
	Actions            []string `json:"actions,omitempty"`
	RequireInteraction bool     `json:"require_interaction,omitempty"`
}

// Notifier is the notification display primitive.
type Notifier interface {
	Show(ctx context.Context, id string, n Notification) error
	Clear(ctx context.Context, id string) error
}

// LogNotifier writes notifications to the process log. Default when no
// webhook is configured; also what headless deployments run with.
type LogNotifier struct{}

func (LogNotifier) Show(_ context.Context, id string, n Notification) error {
	appLog.Info("notification", "id", id, "title", n.Title, "message", n.Message, "actions", fmt.Sprint(n.Actions))
	return nil
}

func (LogNotifier) Clear(_ context.Context, id string) error {
	appLog.Info("notification cleared", "id", id)
	return nil
}

// WebhookNotifier POSTs notifications as JSON to an external endpoint
// (a push relay, chat hook, or similar).
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

type webhookPayload struct {
	ID      string `json:"id"`
	Event   string `json:"event"` // "show" or "clear"
	Notification
}

func (w *WebhookNotifier) Show(ctx context.Context, id string, n Notification) error {
	return w.post(ctx, webhookPayload{ID: id, Event: "show", Notification: n})
}

func (w *WebhookNotifier) Clear(ctx context.Context, id string) error {
	return w.post(ctx, webhookPayload{ID: id, Event: "clear"})
}

func (w *WebhookNotifier) post(ctx context.Context, p webhookPayload) error {
	if w.url == "" {
		return errors.New("webhook URL is empty")
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(p).
		Post(w.url)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned %s", resp.Status())
	}
	return nil
}
