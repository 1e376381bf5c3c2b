package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/signalgridgo/internal/registry"
)

// ModuleFunc adapts a plain function to the registry.Module interface so
// tests can register ad-hoc handlers without declaring a type.
type ModuleFunc func(r *registry.Registry)

// Register implements registry.Module.
func (f ModuleFunc) Register(r *registry.Registry) { f(r) }

// MockSleeperModule is a shared, self-contained module for concurrency
// tests. It registers one internal handler per stage id and records the
// execution window of each.
type MockSleeperModule struct {
	StageIDs       []string
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewMockSleeperModule creates a new sleeper module for testing.
func NewMockSleeperModule(stageIDs []string, completionChan chan<- string, sleep time.Duration) *MockSleeperModule {
	return &MockSleeperModule{
		StageIDs:       stageIDs,
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

// Register registers a sleeper handler for every configured stage id.
func (m *MockSleeperModule) Register(r *registry.Registry) {
	for _, id := range m.StageIDs {
		stageID := id
		r.RegisterInternal(stageID, func(_ context.Context, _ registry.ExecContext, _ map[string]any) (map[string]any, error) {
			startTime := time.Now()
			time.Sleep(m.sleepDuration)
			endTime := time.Now()

			m.mu.Lock()
			m.ExecutionTimes[stageID] = &ExecutionRecord{Start: startTime, End: endTime}
			m.mu.Unlock()

			if m.completionChan != nil {
				m.completionChan <- stageID
			}
			return map[string]any{stageID + "_done": true}, nil
		})
	}
}

// Record returns the execution record for a stage id, or nil.
func (m *MockSleeperModule) Record(stageID string) *ExecutionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecutionTimes[stageID]
}
