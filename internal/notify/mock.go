package notify

import (
	"context"
	"sync"
)

// Recorder captures deliveries for tests. FailIDs lists recipients whose
// sends should fail.
type Recorder struct {
	mu      sync.Mutex
	sent    []Delivery
	FailIDs map[int64]error
}

type Delivery struct {
	Recipient int64
	Text      string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, recipient int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.FailIDs[recipient]; ok {
		return err
	}
	r.sent = append(r.sent, Delivery{Recipient: recipient, Text: text})
	return nil
}

func (r *Recorder) Sent() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *Recorder) SentTo(recipient int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, d := range r.sent {
		if d.Recipient == recipient {
			out = append(out, d.Text)
		}
	}
	return out
}
