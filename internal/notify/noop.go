package notify

import "context"

// NoopNotifier discards all alerts and always reports success.
type NoopNotifier struct{}

// NewNoopNotifier creates a NoopNotifier.
func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

// Send implements Notifier by doing nothing.
func (*NoopNotifier) Send(_ context.Context, _ Channel, _ []Embed) error {
	return nil
}
