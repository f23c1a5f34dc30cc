package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	classes          map[int]int
	validationErrors map[string]int
	internalErrors   int
	latencySum       float64
	latencyCount     int
}

func (m *MockMetrics) PredictionObserve(class int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.classes == nil {
		m.classes = make(map[int]int)
	}
	m.predictions++
	m.classes[class]++
}

func (m *MockMetrics) ValidationErrorInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validationErrors == nil {
		m.validationErrors = make(map[string]int)
	}
	m.validationErrors[kind]++
}

func (m *MockMetrics) InternalErrorInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.internalErrors++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencyCount++
}
