package eventhook

import (
	"log/slog"
	"time"
)

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the logger for the publisher.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithTimeout bounds a single write.
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClock sets the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}
