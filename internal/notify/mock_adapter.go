package notify

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter implements Adapter for testing. It records sent alerts and
// can be made to fail on demand.
type MockAdapter struct {
	mu     sync.Mutex
	sent   []Alert
	closed bool
	fail   bool
}

// NewMockAdapter returns an empty MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// SetFail makes subsequent Sends return an error.
func (m *MockAdapter) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

// Send records the alert.
func (m *MockAdapter) Send(ctx context.Context, alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mock adapter: closed")
	}
	if m.fail {
		return fmt.Errorf("mock adapter: simulated failure")
	}
	m.sent = append(m.sent, alert)
	return nil
}

// Sent returns a copy of the recorded alerts.
func (m *MockAdapter) Sent() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.sent))
	copy(out, m.sent)
	return out
}

// Close marks the adapter closed.
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
