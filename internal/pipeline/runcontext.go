package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/policygen/internal/browser"
)

var errRunClosed = errors.New("run context closed")

// RunContext owns the resources of one pipeline run. The browser session is
// created on first use and quit by Close; a failed creation is remembered so
// later sources do not relaunch the browser.
type RunContext struct {
	ID uuid.UUID

	factory   browser.Factory
	mu        sync.Mutex
	driver    browser.Driver
	createErr error
	closed    bool
}

func NewRunContext(factory browser.Factory) *RunContext {
	return &RunContext{ID: uuid.New(), factory: factory}
}

// Driver returns the run's browser session, creating it if needed.
func (rc *RunContext) Driver(ctx context.Context) (browser.Driver, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return nil, errRunClosed
	}
	if rc.driver != nil {
		return rc.driver, nil
	}
	if rc.createErr != nil {
		return nil, rc.createErr
	}
	if rc.factory == nil {
		rc.createErr = errors.New("no browser configured")
		return nil, rc.createErr
	}
	d, err := rc.factory(ctx)
	if err != nil {
		rc.createErr = err
		log.Error().Err(err).Str("run_id", rc.ID.String()).Msg("browser session could not be started")
		return nil, err
	}
	rc.driver = d
	log.Debug().Str("run_id", rc.ID.String()).Msg("browser session started")
	return d, nil
}

// SessionStarted reports whether a browser session was ever created.
func (rc *RunContext) SessionStarted() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.driver != nil
}

// Close quits the session if one was created. It is safe to call more than
// once; only the first call has an effect.
func (rc *RunContext) Close() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return nil
	}
	rc.closed = true
	if rc.driver == nil {
		return nil
	}
	err := rc.driver.Quit()
	if err != nil {
		log.Warn().Err(err).Str("run_id", rc.ID.String()).Msg("browser session did not quit cleanly")
	}
	return err
}
