// Package testutils provides shared test doubles and helpers for exercising
// the evaluation pipeline without live model providers.
package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/rubriq/appraise/internal/domain"
	"github.com/rubriq/appraise/internal/ports"
)

// Ptr returns a pointer to v, for building predictions and other
// optional-field structs inline.
func Ptr[T any](v T) *T { return &v }

// MockModelRunner implements the ModelRunner interface with a configurable
// predict function. It records every call so tests can assert invocation
// counts and prompt contents, and is safe for concurrent use since the
// dataset engine invokes runners from many rows at once.
type MockModelRunner struct {
	mu      sync.Mutex
	prompts []string
	predict func(call int, prompt string) (domain.Prediction, error)
}

// NewMockModelRunner creates a MockModelRunner backed by fn. The call index
// passed to fn starts at zero and increments across all prompts.
func NewMockModelRunner(fn func(call int, prompt string) (domain.Prediction, error)) *MockModelRunner {
	return &MockModelRunner{predict: fn}
}

// NewEchoModelRunner creates a deterministic runner whose output is a pure
// function of the prompt. Repeated calls with the same prompt always return
// the same prediction, making it suitable for determinism checks.
func NewEchoModelRunner() *MockModelRunner {
	return NewMockModelRunner(func(_ int, prompt string) (domain.Prediction, error) {
		return domain.Prediction{Output: Ptr("echo: " + prompt)}, nil
	})
}

// NewScriptedModelRunner creates a runner that returns the given outputs in
// call order, regardless of prompt. Calls past the end of the script fail,
// so tests catch unexpected extra invocations.
func NewScriptedModelRunner(outputs ...string) *MockModelRunner {
	return NewMockModelRunner(func(call int, _ string) (domain.Prediction, error) {
		if call >= len(outputs) {
			return domain.Prediction{}, fmt.Errorf("unexpected model call %d: script has %d outputs", call, len(outputs))
		}
		return domain.Prediction{Output: Ptr(outputs[call])}, nil
	})
}

// NewNonDeterministicModelRunner creates a runner whose output changes on
// every call, for exercising determinism verification failures.
func NewNonDeterministicModelRunner() *MockModelRunner {
	return NewMockModelRunner(func(call int, _ string) (domain.Prediction, error) {
		return domain.Prediction{Output: Ptr(fmt.Sprintf("response %d", call))}, nil
	})
}

// Predict implements ports.ModelRunner by delegating to the configured
// predict function and recording the call.
func (m *MockModelRunner) Predict(ctx context.Context, prompt string) (domain.Prediction, error) {
	if ctx.Err() != nil {
		return domain.Prediction{}, ctx.Err()
	}

	m.mu.Lock()
	call := len(m.prompts)
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	return m.predict(call, prompt)
}

// CallCount returns the number of Predict calls made so far.
func (m *MockModelRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of the prompts received so far, in call order.
func (m *MockModelRunner) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prompts := make([]string, len(m.prompts))
	copy(prompts, m.prompts)
	return prompts
}

// Verify interface compliance at compile time.
var _ ports.ModelRunner = (*MockModelRunner)(nil)
