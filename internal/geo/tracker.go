package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout bounds one position request
const DefaultTimeout = 5 * time.Second

var (
	ErrReleased = errors.New("tracker released")
	ErrNotIdle  = errors.New("tracker already located")
	ErrNotReady = errors.New("tracker has no position yet")
)

// TrackerState of the location lifecycle
type TrackerState int

const (
	StateIdle     TrackerState = iota // nothing requested yet
	StateLocating                     // position request in flight
	StateLocated                      // centered on a fix (initial or marker move)
	StateFallback                     // request failed, centered on the default center
	StateReleased                     // released; late results are ignored
)

func (s TrackerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocating:
		return "locating"
	case StateLocated:
		return "located"
	case StateFallback:
		return "fallback"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LocationSink stores the user's last known position
type LocationSink interface {
	UpdateLocation(ctx context.Context, c Coordinates) error
}

// TrackerOptions configures a Tracker
type TrackerOptions struct {
	Provider      Provider
	Sink          LocationSink // optional
	DefaultCenter Coordinates
	Timeout       time.Duration
	OnSelect      func(c Coordinates) // initial fix and every settled marker move
	OnError       func(err error)     // *PositionError or a sink failure
	Logger        *slog.Logger
}

// Tracker owns the position lifecycle of one map view.
// A failed request takes the single Idle -> Locating -> Fallback transition; there is
// no re-initialisation. After Release, nothing that resolves late fires a callback.
type Tracker struct {
	opts TrackerOptions

	mu     sync.Mutex
	state  TrackerState
	center Coordinates
}

// NewTracker creates an idle tracker centered on the default center
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{opts: opts, center: opts.DefaultCenter}
}

// State returns the lifecycle state
func (t *Tracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Center returns the current map center
func (t *Tracker) Center() Coordinates {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.center
}

// Locate requests the position once.
// On success the fix becomes the center, is stored through the sink and passed to OnSelect.
// On failure the tracker falls back to the default center and returns the *PositionError
// together with that center.
func (t *Tracker) Locate(ctx context.Context) (Coordinates, error) {
	t.mu.Lock()
	if t.state == StateReleased {
		t.mu.Unlock()
		return Coordinates{}, ErrReleased
	}
	if t.state != StateIdle {
		center := t.center
		t.mu.Unlock()
		return center, ErrNotIdle
	}
	t.state = StateLocating
	t.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	pos, err := t.opts.Provider.CurrentPosition(reqCtx)
	cancel()
	if err == nil && !pos.Valid() {
		err = &PositionError{Code: PositionUnavailable, Err: fmt.Errorf("invalid coordinates %s", pos)}
	}

	if err != nil {
		perr := AsPositionError(err)
		t.mu.Lock()
		if t.state == StateReleased {
			t.mu.Unlock()
			return Coordinates{}, ErrReleased
		}
		t.state = StateFallback
		t.center = t.opts.DefaultCenter
		center := t.center
		t.mu.Unlock()

		t.opts.Logger.Warn("geolocation_fallback", "code", perr.Code.String(), "center", center.String(), "error", perr)
		t.report(perr)
		return center, perr
	}

	if !t.settle(ctx, StateLocated, pos) {
		return Coordinates{}, ErrReleased
	}
	return pos, nil
}

// MarkerMoved handles the marker settling on c (drag-end)
func (t *Tracker) MarkerMoved(ctx context.Context, c Coordinates) error {
	if !c.Valid() {
		return &PositionError{Code: PositionUnavailable, Err: fmt.Errorf("invalid coordinates %s", c)}
	}
	t.mu.Lock()
	switch t.state {
	case StateReleased:
		t.mu.Unlock()
		return ErrReleased
	case StateIdle, StateLocating:
		t.mu.Unlock()
		return ErrNotReady
	}
	t.mu.Unlock()

	if !t.settle(ctx, StateLocated, c) {
		return ErrReleased
	}
	return nil
}

// Release ends the lifecycle; later results and callbacks are suppressed
func (t *Tracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateReleased
}

func (t *Tracker) settle(ctx context.Context, state TrackerState, c Coordinates) bool {
	t.mu.Lock()
	if t.state == StateReleased {
		t.mu.Unlock()
		return false
	}
	t.state = state
	t.center = c
	t.mu.Unlock()

	t.opts.Logger.Info("geolocation_settled", "center", c.String())

	if t.opts.Sink != nil {
		if err := t.opts.Sink.UpdateLocation(ctx, c); err != nil {
			t.opts.Logger.Error("location_update_failed", "error", err)
			t.report(fmt.Errorf("update location: %w", err))
		}
	}

	if !t.live() {
		return false
	}
	if t.opts.OnSelect != nil {
		t.opts.OnSelect(c)
	}
	return true
}

func (t *Tracker) live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != StateReleased
}

func (t *Tracker) report(err error) {
	if t.opts.OnError != nil && t.live() {
		t.opts.OnError(err)
	}
}
