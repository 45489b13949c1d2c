package modelrunner

import (
	"context"
	"sync"
	"time"

	"github.com/rubriq/appraise/internal/domain"
)

// MockCoreModel is a configurable CoreModel implementation for testing
// middleware. It gives precise control over responses, timing, and
// failure sequencing.
type MockCoreModel struct {
	mu sync.Mutex

	// Response configuration
	Response       string
	LogProbability *float64
	Error          error
	Model          string
	ResponseDelay  time.Duration

	// FailUntilAttempt makes the first N calls fail, then succeed.
	FailUntilAttempt int

	// Tracking
	CallCount      int
	LastPrompt     string
	Contexts       []context.Context
	CallTimestamps []time.Time
}

// NewMockCoreModel creates a mock with default successful behavior.
func NewMockCoreModel() *MockCoreModel {
	return &MockCoreModel{
		Response:       "test response",
		Model:          "test-model",
		Contexts:       make([]context.Context, 0),
		CallTimestamps: make([]time.Time, 0),
	}
}

// Invoke implements CoreModel with the configured behavior.
func (m *MockCoreModel) Invoke(ctx context.Context, prompt string) (domain.Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastPrompt = prompt
	m.Contexts = append(m.Contexts, ctx)
	m.CallTimestamps = append(m.CallTimestamps, time.Now())

	if m.ResponseDelay > 0 {
		select {
		case <-time.After(m.ResponseDelay):
		case <-ctx.Done():
			return domain.Prediction{}, ctx.Err()
		}
	}

	if m.FailUntilAttempt > 0 && m.CallCount <= m.FailUntilAttempt {
		if m.Error != nil {
			return domain.Prediction{}, m.Error
		}
		return domain.Prediction{}, &testError{message: "simulated failure"}
	}

	if m.Error != nil {
		return domain.Prediction{}, m.Error
	}

	response := m.Response
	return domain.Prediction{Output: &response, LogProbability: m.LogProbability}, nil
}

// GetModel returns the configured model name.
func (m *MockCoreModel) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// Reset clears all tracking data while preserving configuration.
func (m *MockCoreModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.LastPrompt = ""
	m.Contexts = make([]context.Context, 0)
	m.CallTimestamps = make([]time.Time, 0)
}

// GetCallCount returns the number of times Invoke was called.
func (m *MockCoreModel) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// GetTimeBetweenCalls returns the duration between two recorded calls,
// or nil when either index is out of range.
func (m *MockCoreModel) GetTimeBetweenCalls(call1, call2 int) *time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call1 < 0 || call2 < 0 || call1 >= len(m.CallTimestamps) || call2 >= len(m.CallTimestamps) {
		return nil
	}

	duration := m.CallTimestamps[call2].Sub(m.CallTimestamps[call1])
	return &duration
}

// testError provides a simple error type for testing.
type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
