package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Session is a launched browser bound to one pipeline. A run opens one
// session, captures its domains sequentially and closes it.
type Session struct {
	*Pipeline
	browser Browser
	once    sync.Once
	err     error
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.err = s.browser.Close()
		if s.err != nil {
			slog.Warn("cleanup: failed to close browser", "error", s.err)
		}
	})
	return s.err
}

// Sessions launches a fresh browser for every session it opens.
type Sessions struct {
	launcher Launcher
	opts     Options
}

// NewSessions creates a session factory.
func NewSessions(launcher Launcher, opts Options) *Sessions {
	return &Sessions{launcher: launcher, opts: opts}
}

// Open launches a browser and wraps it in a pipeline.
func (f *Sessions) Open(ctx context.Context) (*Session, error) {
	browser, err := f.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &Session{Pipeline: NewPipeline(browser, f.opts), browser: browser}, nil
}
