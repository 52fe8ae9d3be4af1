package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	NodeRunning       time.Duration // Timeout for a new node to reach RUNNING
	NodeSuspended     time.Duration // Timeout for a node to stop
	NodeTerminated    time.Duration // Timeout for a node to disappear
	ResourceReady     time.Duration // Timeout for networks, subnets and security groups
	Delete            time.Duration // Timeout for secondary resource deletion
	TaskDone          time.Duration // Timeout for provider tasks
	PollInitial       time.Duration // First poll interval
	PollMax           time.Duration // Poll interval cap
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - NODEKIT_TIMEOUT_NODE_RUNNING (default: 10m)
//   - NODEKIT_TIMEOUT_NODE_SUSPENDED (default: 5m)
//   - NODEKIT_TIMEOUT_NODE_TERMINATED (default: 5m)
//   - NODEKIT_TIMEOUT_RESOURCE_READY (default: 2m)
//   - NODEKIT_TIMEOUT_DELETE (default: 5m)
//   - NODEKIT_TIMEOUT_TASK (default: 10m)
//   - NODEKIT_POLL_INITIAL (default: 1s)
//   - NODEKIT_POLL_MAX (default: 10s)
//   - NODEKIT_RETRY_MAX_ATTEMPTS (default: 5)
//   - NODEKIT_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		NodeRunning:       parseDuration("NODEKIT_TIMEOUT_NODE_RUNNING", 10*time.Minute),
		NodeSuspended:     parseDuration("NODEKIT_TIMEOUT_NODE_SUSPENDED", 5*time.Minute),
		NodeTerminated:    parseDuration("NODEKIT_TIMEOUT_NODE_TERMINATED", 5*time.Minute),
		ResourceReady:     parseDuration("NODEKIT_TIMEOUT_RESOURCE_READY", 2*time.Minute),
		Delete:            parseDuration("NODEKIT_TIMEOUT_DELETE", 5*time.Minute),
		TaskDone:          parseDuration("NODEKIT_TIMEOUT_TASK", 10*time.Minute),
		PollInitial:       parseDuration("NODEKIT_POLL_INITIAL", 1*time.Second),
		PollMax:           parseDuration("NODEKIT_POLL_MAX", 10*time.Second),
		RetryMaxAttempts:  parseInt("NODEKIT_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("NODEKIT_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// TestTimeouts returns timeouts short enough for unit tests.
func TestTimeouts() *Timeouts {
	return &Timeouts{
		NodeRunning:       2 * time.Second,
		NodeSuspended:     2 * time.Second,
		NodeTerminated:    2 * time.Second,
		ResourceReady:     2 * time.Second,
		Delete:            2 * time.Second,
		TaskDone:          2 * time.Second,
		PollInitial:       time.Millisecond,
		PollMax:           5 * time.Millisecond,
		RetryMaxAttempts:  2,
		RetryInitialDelay: time.Millisecond,
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
