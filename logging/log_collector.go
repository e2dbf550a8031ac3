package logging

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// LogEntry represents a single log record with structured data.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"` // "DEBUG", "INFO", "WARN", "ERROR"
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes"`
}

// LogCollector stores the log records of test cases, keyed by test case name.
// It is safe for concurrent use.
type LogCollector struct {
	mu   sync.RWMutex
	logs map[string][]LogEntry
}

// NewLogCollector creates a new LogCollector.
func NewLogCollector() *LogCollector {
	return &LogCollector{
		logs: make(map[string][]LogEntry),
	}
}

// AddLog adds a log entry for the test case.
func (c *LogCollector) AddLog(testCase string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs[testCase] = append(c.logs[testCase], entry)
}

// GetLogs returns a copy of the entries logged by the test case.
func (c *LogCollector) GetLogs(testCase string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	logs, exists := c.logs[testCase]
	if !exists {
		return nil
	}
	return slices.Clone(logs)
}

// GetAllLogs returns a copy of every entry, grouped by test case.
func (c *LogCollector) GetAllLogs() map[string][]LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string][]LogEntry, len(c.logs))
	for testCase, logs := range c.logs {
		result[testCase] = slices.Clone(logs)
	}
	return result
}

// Cases returns the names of the test cases that logged, sorted.
func (c *LogCollector) Cases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Sorted(maps.Keys(c.logs))
}

// Clear removes all stored logs.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logs = make(map[string][]LogEntry)
}
