package communications

import (
	"context"
	"log/slog"
)

// Message is a rendered outbound communication handed to a delivery
// channel.
type Message struct {
	ClientID   string `json:"client_id"`
	Channel    Type   `json:"channel"`
	To         string `json:"to"`
	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body"`
	TemplateID string `json:"template_id,omitempty"`
}

// Dispatcher accepts rendered messages for delivery. Actual transport
// (SMTP, SMS gateway) lives behind this interface; the engine only cares
// whether handover succeeded.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// LogDispatcher records outbound messages to the log without delivering
// them. Default in development.
type LogDispatcher struct {
	Logger *slog.Logger
}

// Dispatch implements Dispatcher.
func (d LogDispatcher) Dispatch(_ context.Context, msg Message) error {
	if d.Logger != nil {
		d.Logger.Info("dispatch communication",
			slog.String("client_id", msg.ClientID),
			slog.String("channel", string(msg.Channel)),
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject))
	}
	return nil
}
