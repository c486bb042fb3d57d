package model

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockReply is one scripted generator outcome.
type MockReply struct {
	Text string
	Err  error
}

// MockModel is a lightweight in-memory Model useful for tests and examples.
//
// Replies are resolved in this order: the scripted queue, the handler, the
// canned responses keyed by the last user message, and finally an echo.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	queue     []MockReply
	handler   func(req Request) (string, error)
	responses map[string]string
	requests  []Request
	delay     time.Duration
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:         name,
			Provider:     provider,
			SupportsJSON: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Enqueue appends scripted replies consumed one per Generate call.
func (m *MockModel) Enqueue(replies ...MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, replies...)
}

// EnqueueText appends successful scripted replies.
func (m *MockModel) EnqueueText(texts ...string) {
	for _, t := range texts {
		m.Enqueue(MockReply{Text: t})
	}
}

// SetHandler installs a function computing replies from the request.
func (m *MockModel) SetHandler(fn func(req Request) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// SetDelay makes every call wait before replying, honouring cancellation.
func (m *MockModel) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Requests returns a copy of the requests seen so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Calls returns the number of Generate calls so far.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockModel) next(req Request) (string, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		return r.Text, m.delay, r.Err
	}

	if m.handler != nil {
		text, err := m.handler(req)
		return text, m.delay, err
	}

	input := req.LastUserText()
	if full, ok := m.responses[input]; ok {
		return full, m.delay, nil
	}

	return fmt.Sprintf("Mock response to: %s", input), m.delay, nil
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		full, delay, err := m.next(req)

		if delay > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(delay):
			}
		}

		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: assistant(string(r))}:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Content: assistant(full), FinishReason: "stop"}:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
