package testutil

import (
	"context"

	"transportagent/internal/agent"
)

// MockAgent is a mock implementation of the Agent interface for testing
type MockAgent struct {
	RunFunc  func(ctx context.Context) (agent.Result, error)
	NameFunc func() string
	Calls    int
}

// Run implements the Agent interface
func (m *MockAgent) Run(ctx context.Context) (agent.Result, error) {
	m.Calls++
	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return agent.Result{}, nil
}

// Name implements the Agent interface
func (m *MockAgent) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// NewMockAgent creates a simple mock agent with a predefined outcome
func NewMockAgent(name string, res agent.Result, err error) *MockAgent {
	return &MockAgent{
		RunFunc: func(ctx context.Context) (agent.Result, error) {
			return res, err
		},
		NameFunc: func() string {
			return name
		},
	}
}
