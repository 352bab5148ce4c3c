package llm

import "context"

// MockInvoker scripts responses for tests. Each call consumes the next
// step; when the script runs out the last step repeats.
type MockInvoker struct {
	Steps    []MockStep
	Requests []Request
	calls    int
}

type MockStep struct {
	Response string
	Err      error
}

func (m *MockInvoker) Translate(_ context.Context, req Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if len(m.Steps) == 0 {
		return "", nil
	}
	idx := m.calls
	if idx >= len(m.Steps) {
		idx = len(m.Steps) - 1
	}
	m.calls++
	step := m.Steps[idx]
	return step.Response, step.Err
}

func (m *MockInvoker) ModelID() string { return "mock" }

// Calls returns how many times Translate ran.
func (m *MockInvoker) Calls() int { return m.calls }

// MockFunc adapts a function to the Invoker interface for tests that
// need per-request behavior.
type MockFunc struct {
	Fn    func(req Request) (string, error)
	Model string
}

func (m *MockFunc) Translate(_ context.Context, req Request) (string, error) {
	return m.Fn(req)
}

func (m *MockFunc) ModelID() string {
	if m.Model == "" {
		return "mock"
	}
	return m.Model
}
