package core

import (
	"context"
	"fmt"
	"sync"
)

// MockRunner implements Runner for tests. Responses are keyed by the full
// command line as built by CommandLine.
type MockRunner struct {
	mu           sync.Mutex
	Expectations map[string][]MockResponse
	Calls        []string
}

type MockResponse struct {
	Stdout string
	Stderr string
	Error  error
}

func NewMockRunner() *MockRunner {
	return &MockRunner{
		Expectations: make(map[string][]MockResponse),
		Calls:        make([]string, 0),
	}
}

// OnRun registers a response for cmd. Several responses for the same command
// are returned in order; the last one repeats once the queue is drained.
func (m *MockRunner) OnRun(cmd string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Expectations[cmd] = append(m.Expectations[cmd], resp)
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := CommandLine(name, args...)
	m.Calls = append(m.Calls, cmd)

	queue, ok := m.Expectations[cmd]
	if !ok || len(queue) == 0 {
		return "", "", fmt.Errorf("unexpected command: %s", cmd)
	}
	resp := queue[0]
	if len(queue) > 1 {
		m.Expectations[cmd] = queue[1:]
	}
	return resp.Stdout, resp.Stderr, resp.Error
}

// CallCount returns how many times cmd was run.
func (m *MockRunner) CallCount(cmd string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.Calls {
		if call == cmd {
			n++
		}
	}
	return n
}
