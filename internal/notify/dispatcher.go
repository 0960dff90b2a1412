package notify

import (
	"context"
	"log"
)

// Dispatcher delivers one message to one recipient. Failures are per-recipient
// and never abort the operation that triggered the send.
type Dispatcher interface {
	Send(ctx context.Context, recipient int64, text string) error
}

// LogSender is the fallback dispatcher when no bot token is configured: it
// writes would-be deliveries to the process log.
type LogSender struct{}

func NewLogSender() *LogSender {
	return &LogSender{}
}

func (s *LogSender) Send(_ context.Context, recipient int64, text string) error {
	log.Printf("notify (log sender) -> %d: %s", recipient, text)
	return nil
}
