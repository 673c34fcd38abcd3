package panelsim

import (
	"sync"
	"time"
)

// Auth window defaults. A real panel unlocks after three door-button
// presses and relocks on its own after a while.
const (
	// DefaultRequiredPresses is how many door-button presses unlock the
	// auth window.
	DefaultRequiredPresses = 3

	// DefaultUnlockDuration is how long the window stays unlocked before
	// relocking on its own.
	DefaultUnlockDuration = 15 * time.Minute
)

// WindowState represents the state of the auth window.
type WindowState uint8

const (
	// WindowLocked indicates the panel refuses token registrations.
	WindowLocked WindowState = iota

	// WindowUnlocked indicates the panel grants token registrations.
	WindowUnlocked
)

// String returns a human-readable state name.
func (s WindowState) String() string {
	switch s {
	case WindowLocked:
		return "LOCKED"
	case WindowUnlocked:
		return "UNLOCKED"
	default:
		return "UNKNOWN"
	}
}

// AuthWindow is the token-grant window state machine. Door-button
// presses count down to an unlock; the unlocked window relocks itself
// after a timeout. All methods are safe for concurrent use.
type AuthWindow struct {
	mu sync.Mutex

	state     WindowState
	required  int
	remaining int

	duration   time.Duration
	unlockedAt time.Time

	// Timer for auto-relock
	timer *time.Timer

	onStateChange func(oldState, newState WindowState)
}

// NewAuthWindow creates a locked window with the default settings.
func NewAuthWindow() *AuthWindow {
	return &AuthWindow{
		state:     WindowLocked,
		required:  DefaultRequiredPresses,
		remaining: DefaultRequiredPresses,
		duration:  DefaultUnlockDuration,
	}
}

// SetRequiredPresses sets how many presses unlock the window and resets
// the countdown. Values below 1 are clamped to 1.
func (w *AuthWindow) SetRequiredPresses(n int) {
	if n < 1 {
		n = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.required = n
	if w.state == WindowLocked {
		w.remaining = n
	}
}

// SetUnlockDuration sets how long the window stays unlocked.
// Non-positive durations keep the default.
func (w *AuthWindow) SetUnlockDuration(d time.Duration) {
	if d <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.duration = d
}

// State returns the current window state.
func (w *AuthWindow) State() WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// IsUnlocked returns true if the window currently grants tokens.
func (w *AuthWindow) IsUnlocked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == WindowUnlocked
}

// Remaining returns how many presses are still needed. Zero while the
// window is unlocked.
func (w *AuthWindow) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WindowUnlocked {
		return 0
	}
	return w.remaining
}

// RemainingTime returns the time until auto-relock. Zero when locked.
func (w *AuthWindow) RemainingTime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != WindowUnlocked {
		return 0
	}
	remaining := w.duration - time.Since(w.unlockedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PressButton registers one door-button press. It returns the presses
// still needed and whether the window is now unlocked. A press while
// unlocked extends the unlock timeout.
func (w *AuthWindow) PressButton() (remaining int, unlocked bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == WindowUnlocked {
		// Already unlocked - extend the timeout
		w.resetTimer()
		return 0, true
	}

	if w.remaining > 0 {
		w.remaining--
	}
	if w.remaining > 0 {
		return w.remaining, false
	}

	oldState := w.state
	w.state = WindowUnlocked
	w.resetTimer()

	if w.onStateChange != nil {
		w.onStateChange(oldState, w.state)
	}
	return 0, true
}

// Unlock forces the window open, as if the press sequence completed.
func (w *AuthWindow) Unlock() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == WindowUnlocked {
		w.resetTimer()
		return
	}

	oldState := w.state
	w.state = WindowUnlocked
	w.remaining = 0
	w.resetTimer()

	if w.onStateChange != nil {
		w.onStateChange(oldState, w.state)
	}
}

// Lock relocks the window and resets the press countdown.
func (w *AuthWindow) Lock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lockLocked()
}

// lockLocked relocks the window. Caller holds the lock.
func (w *AuthWindow) lockLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	oldState := w.state
	w.state = WindowLocked
	w.remaining = w.required

	if oldState != WindowLocked && w.onStateChange != nil {
		w.onStateChange(oldState, w.state)
	}
}

// OnStateChange sets a callback for lock/unlock transitions. The callback
// runs with the window lock held for presses and synchronously from the
// relock timer goroutine on timeout.
func (w *AuthWindow) OnStateChange(fn func(oldState, newState WindowState)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onStateChange = fn
}

// handleTimeout is called when the unlock timer expires.
func (w *AuthWindow) handleTimeout() {
	w.mu.Lock()

	if w.state == WindowLocked {
		w.mu.Unlock()
		return
	}

	oldState := w.state
	w.state = WindowLocked
	w.remaining = w.required
	w.timer = nil

	// Capture the callback before releasing the lock
	stateChangeFn := w.onStateChange

	w.mu.Unlock()

	// Call outside the lock to prevent deadlock
	if stateChangeFn != nil {
		stateChangeFn(oldState, WindowLocked)
	}
}

// resetTimer (re)arms the relock timer. Caller holds the lock.
func (w *AuthWindow) resetTimer() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.unlockedAt = time.Now()
	w.timer = time.AfterFunc(w.duration, func() {
		w.handleTimeout()
	})
}
