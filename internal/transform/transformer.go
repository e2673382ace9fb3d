package transform

import (
	"time"

	"relay/internal/logger"
)

const createdAtLayout = "2006-01-02 15:04:05"

// Transformer maps loosely-typed event payloads into the canonical API
// request shapes. It performs no I/O; the logger only records skipped items.
type Transformer struct {
	logger logger.Logger
	now    func() time.Time
}

func New(log logger.Logger) *Transformer {
	return &Transformer{
		logger: log,
		now:    time.Now,
	}
}

// NewWithClock pins the timestamp source, for tests.
func NewWithClock(log logger.Logger, now func() time.Time) *Transformer {
	return &Transformer{logger: log, now: now}
}

func (t *Transformer) defaultCreatedAt() string {
	return t.now().UTC().Format(createdAtLayout)
}

func (t *Transformer) createdAtOrNow(m map[string]interface{}, key string) string {
	if v := getString(m, key); v != "" {
		return v
	}
	return t.defaultCreatedAt()
}
