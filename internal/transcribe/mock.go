package transcribe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// MockClient is the mock provider variant selected by
// TRANSCRIPTION_PROVIDER=mock. Tests configure canned responses and
// failure counts per audio blob key; it also tracks how many
// Transcribe calls are in flight, used to assert the AI semaphore
// bound (spec.md §8 scenario S5).
type MockClient struct {
	mu          sync.Mutex
	responses   map[string][]Segment
	failuresLeft map[string]int

	inFlight  int64
	maxInFlight int64
}

// NewMockClient creates a mock transcription client with no canned
// responses configured; tests call SetResponse/SetFailures before use.
func NewMockClient() *MockClient {
	return &MockClient{
		responses:    make(map[string][]Segment),
		failuresLeft: make(map[string]int),
	}
}

// SetResponse configures the segments Transcribe returns for key once
// its failure budget (see SetFailures) is exhausted.
func (m *MockClient) SetResponse(key string, segments []Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = segments
}

// SetFailures configures Transcribe to fail the first n calls for key
// before returning its configured response.
func (m *MockClient) SetFailures(key string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failuresLeft[key] = n
}

// Transcribe returns the canned response for audioBlobKey, first
// consuming any configured failure budget.
func (m *MockClient) Transcribe(ctx context.Context, audioBlobKey string) ([]Segment, error) {
	cur := atomic.AddInt64(&m.inFlight, 1)
	defer atomic.AddInt64(&m.inFlight, -1)
	for {
		max := atomic.LoadInt64(&m.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&m.maxInFlight, max, cur) {
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if left := m.failuresLeft[audioBlobKey]; left > 0 {
		m.failuresLeft[audioBlobKey] = left - 1
		return nil, fmt.Errorf("transcribe: mock failure for %s (%d remaining)", audioBlobKey, left)
	}
	return m.responses[audioBlobKey], nil
}

// MaxObservedInFlight returns the highest number of concurrent
// Transcribe calls observed so far, for asserting the AI concurrency
// bound in tests.
func (m *MockClient) MaxObservedInFlight() int64 {
	return atomic.LoadInt64(&m.maxInFlight)
}
