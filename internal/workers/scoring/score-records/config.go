// internal/workers/scoring/score-records/config.go
package scorerecords

import (
	"time"

	"inclusion-scoring/internal/common/config"
)

const defaultCommandTimeout = 10 * time.Second

type Config struct {
	Timeout time.Duration
	// CommandTimeout bounds each complete/fail/throw call to the broker,
	// independent of the time scoring used.
	CommandTimeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := time.Duration(wcfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{Timeout: timeout, CommandTimeout: defaultCommandTimeout}
}
