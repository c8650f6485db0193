package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/lgu-docflow/internal/core/domain"
	"github.com/kirillkom/lgu-docflow/internal/infrastructure/resilience"
)

// Notifier publishes resident notifications for a delivery service to pick up.
// Templates, keyed by event, override the default message and may use the
// {request_number} and {status} placeholders.
type Notifier struct {
	conn      *nats.Conn
	subject   string
	executor  *resilience.Executor
	templates map[string]string
}

func NewNotifier(conn *nats.Conn, subject string, executor *resilience.Executor, templates map[string]string) *Notifier {
	return &Notifier{conn: conn, subject: subject, executor: executor, templates: templates}
}

func (n *Notifier) Notify(ctx context.Context, notice domain.Notification) error {
	data, err := encodeNotification(notice, n.templates)
	if err != nil {
		return err
	}
	return publish(ctx, n.conn, n.executor, "nats.publish.notification", n.subject+"."+string(notice.Event), data)
}

func encodeNotification(notice domain.Notification, templates map[string]string) ([]byte, error) {
	if tmpl, ok := templates[string(notice.Event)]; ok && strings.TrimSpace(tmpl) != "" {
		notice.Message = strings.NewReplacer(
			"{request_number}", notice.RequestNumber,
			"{status}", string(notice.Status),
		).Replace(tmpl)
	}
	data, err := json.Marshal(notice)
	if err != nil {
		return nil, fmt.Errorf("marshal notification: %w", err)
	}
	return data, nil
}
