package llm

import (
	"context"
	"errors"
)

// MockClient implements the Client interface for testing purposes.
// It replays scripted responses in order and records every request.
type MockClient struct {
	// Responses are returned one per Complete call, in order.
	Responses []string
	// Err, when set, is returned by every Complete call.
	Err error
	// Requests records each request received, in order.
	Requests []Request

	next int
}

// Ensure MockClient implements Client interface
var _ Client = (*MockClient)(nil)

// Complete records the request and returns the next scripted response.
func (m *MockClient) Complete(_ context.Context, req Request) (string, error) {
	m.Requests = append(m.Requests, req)

	if m.Err != nil {
		return "", m.Err
	}

	if m.next >= len(m.Responses) {
		return "", errors.New("llm mock: no scripted response left")
	}

	resp := m.Responses[m.next]
	m.next++

	return resp, nil
}
