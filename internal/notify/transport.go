package notify

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Transport is the notification delivery boundary. The scheduler only
// ever talks to this interface, so tests run against a fake.
type Transport interface {
	// RequestPermission asks the underlying channel whether dispatching
	// is allowed. A false return without error means denied.
	RequestPermission(ctx context.Context) (bool, error)
	// Dispatch sends one notification immediately and returns its id.
	Dispatch(ctx context.Context, title, body string, meta map[string]string) (string, error)
	// CancelAll withdraws pending notifications where the channel
	// supports it.
	CancelAll(ctx context.Context) error
}

// ConsoleTransport logs notifications to stdout; the dev and test
// default.
type ConsoleTransport struct {
	mu      sync.Mutex
	pending []string
}

// NewConsoleTransport creates a console transport.
func NewConsoleTransport() *ConsoleTransport {
	return &ConsoleTransport{}
}

func (t *ConsoleTransport) RequestPermission(context.Context) (bool, error) { return true, nil }

func (t *ConsoleTransport) Dispatch(_ context.Context, title, body string, _ map[string]string) (string, error) {
	id := uuid.NewString()
	t.mu.Lock()
	t.pending = append(t.pending, id)
	t.mu.Unlock()
	log.Printf("notification %s\n%s\n%s", id, title, body)
	return id, nil
}

func (t *ConsoleTransport) CancelAll(context.Context) error {
	t.mu.Lock()
	n := len(t.pending)
	t.pending = nil
	t.mu.Unlock()
	if n > 0 {
		log.Printf("cancelled %d pending notification(s)", n)
	}
	return nil
}

// Pending reports how many dispatched notifications have not been
// cancelled.
func (t *ConsoleTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
