package iocache

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/traelabs/trae/internal/contract"
	"github.com/traelabs/trae/schema"
)

// MockCacheManager is a mock implementation of CacheManager for testing.
type MockCacheManager struct {
	mock.Mock
}

var _ contract.CacheManager = &MockCacheManager{} // Compile-time check

// GetCacheStore implements the CacheManager interface.
func (m *MockCacheManager) GetCacheStore() contract.CacheStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.CacheStore)
	return store
}

// GetRunStore implements the CacheManager interface.
func (m *MockCacheManager) GetRunStore() contract.RunStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.RunStore)
	return store
}

// MockCacheStore is a mock implementation of CacheStore for testing.
type MockCacheStore struct {
	mock.Mock
}

var _ contract.CacheStore = &MockCacheStore{} // Compile-time check

// Get implements the CacheStore interface.
func (m *MockCacheStore) Get(key string) ([]byte, string, int64, error) {
	args := m.Called(key)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.Get(2).(int64), args.Error(3)
}

// Set implements the CacheStore interface.
func (m *MockCacheStore) Set(key string, data []byte, version string, ts int64) error {
	args := m.Called(key, data, version, ts)
	return args.Error(0)
}

// Delete implements the CacheStore interface.
func (m *MockCacheStore) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// Prune implements the CacheStore interface.
func (m *MockCacheStore) Prune(before int64) (int, error) {
	args := m.Called(before)
	return args.Int(0), args.Error(1)
}

// Close implements the CacheStore interface.
func (m *MockCacheStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// GetStatus implements the CacheStore interface.
func (m *MockCacheStore) GetStatus() (schema.CacheStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// MockRunStore is a mock implementation of RunStore for testing.
type MockRunStore struct {
	mock.Mock
}

var _ contract.RunStore = &MockRunStore{} // Compile-time check

// BeginRun implements the RunStore interface.
func (m *MockRunStore) BeginRun(startTime time.Time, runUUID, root string, configParams map[string]any) (int64, error) {
	args := m.Called(startTime, runUUID, root, configParams)
	return args.Get(0).(int64), args.Error(1)
}

// EndRun implements the RunStore interface.
func (m *MockRunStore) EndRun(runID int64, endTime time.Time, filesScanned, linesScanned int, score float64) error {
	args := m.Called(runID, endTime, filesScanned, linesScanned, score)
	return args.Error(0)
}

// RecordIssues implements the RunStore interface.
func (m *MockRunStore) RecordIssues(runID int64, issues []schema.Issue) error {
	args := m.Called(runID, issues)
	return args.Error(0)
}

// GetStatus implements the RunStore interface.
func (m *MockRunStore) GetStatus() (schema.RunStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.RunStatus), args.Error(1)
}

// GetAllRuns implements the RunStore interface.
func (m *MockRunStore) GetAllRuns() ([]schema.RunRecord, error) {
	args := m.Called()
	runs, _ := args.Get(0).([]schema.RunRecord)
	return runs, args.Error(1)
}

// GetAllIssues implements the RunStore interface.
func (m *MockRunStore) GetAllIssues() ([]schema.IssueRecord, error) {
	args := m.Called()
	issues, _ := args.Get(0).([]schema.IssueRecord)
	return issues, args.Error(1)
}

// Close implements the RunStore interface.
func (m *MockRunStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockMetricsSink is a mock implementation of MetricsSink for testing.
type MockMetricsSink struct {
	mock.Mock
}

var _ contract.MetricsSink = &MockMetricsSink{} // Compile-time check

// Emit implements the MetricsSink interface.
func (m *MockMetricsSink) Emit(ctx context.Context, record schema.MetricsRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
