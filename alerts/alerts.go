package alerts

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/learnlink-client/internal/errors"
	"github.com/jrsteele09/learnlink-client/internal/validation"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

const DefaultDuration = 5 * time.Second

type Alert struct {
	ID        string
	Level     Level
	Message   string
	CreatedAt time.Time
}

func (a Alert) String() string {
	return fmt.Sprintf("[%s] %s", a.Level, a.Message)
}

// Stopper is the subset of *time.Timer the center needs
type Stopper interface {
	Stop() bool
}

// Center holds the alerts currently on screen. Each alert is dismissed
// automatically after the configured duration unless closed earlier.
type Center struct {
	mu        sync.Mutex
	alerts    map[string]Alert
	timers    map[string]Stopper
	duration  time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration, func()) Stopper
	onChange  func([]Alert)
}

type CenterOption func(*Center)

func WithDuration(d time.Duration) CenterOption {
	return func(c *Center) {
		if d > 0 {
			c.duration = d
		}
	}
}

func WithNowFunc(fn func() time.Time) CenterOption {
	return func(c *Center) {
		c.nowFunc = fn
	}
}

func WithAfterFunc(fn func(time.Duration, func()) Stopper) CenterOption {
	return func(c *Center) {
		c.afterFunc = fn
	}
}

// WithOnChange is called with the active alerts after every show or dismiss
func WithOnChange(fn func([]Alert)) CenterOption {
	return func(c *Center) {
		c.onChange = fn
	}
}

func NewCenter(options ...CenterOption) *Center {
	c := &Center{
		alerts:   make(map[string]Alert),
		timers:   make(map[string]Stopper),
		duration: DefaultDuration,
		nowFunc:  time.Now,
		afterFunc: func(d time.Duration, fn func()) Stopper {
			return time.AfterFunc(d, fn)
		},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Center) Show(level Level, message string) Alert {
	a := Alert{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: c.nowFunc(),
	}

	c.mu.Lock()
	c.alerts[a.ID] = a
	c.timers[a.ID] = c.afterFunc(c.duration, func() { c.Dismiss(a.ID) })
	c.mu.Unlock()

	c.notify()
	return a
}

func (c *Center) Success(message string) Alert { return c.Show(LevelSuccess, message) }
func (c *Center) Error(message string) Alert   { return c.Show(LevelError, message) }
func (c *Center) Warning(message string) Alert { return c.Show(LevelWarning, message) }
func (c *Center) Info(message string) Alert    { return c.Show(LevelInfo, message) }

// ShowError shows err as an alert. A nil error shows nothing.
func (c *Center) ShowError(err error) (Alert, bool) {
	if err == nil {
		return Alert{}, false
	}
	level, msg := FromError(err)
	return c.Show(level, msg), true
}

// Dismiss closes an alert. Dismissing an unknown or already closed alert is a no-op.
func (c *Center) Dismiss(id string) {
	c.mu.Lock()
	_, ok := c.alerts[id]
	if ok {
		delete(c.alerts, id)
		if t := c.timers[id]; t != nil {
			t.Stop()
		}
		delete(c.timers, id)
	}
	c.mu.Unlock()

	if ok {
		c.notify()
	}
}

// Active returns the open alerts, oldest first
func (c *Center) Active() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

// Close stops every pending dismissal timer
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Center) activeLocked() []Alert {
	out := make([]Alert, 0, len(c.alerts))
	for _, a := range c.alerts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (c *Center) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Active())
}

// FromError picks the alert level and message for err
func FromError(err error) (Level, string) {
	var fe validation.FieldErrors
	if apperrors.As(err, &fe) {
		return LevelWarning, fe.Error()
	}
	switch {
	case apperrors.Is(err, apperrors.ErrSessionExpired), apperrors.Is(err, apperrors.ErrRefreshFailed):
		return LevelWarning, "Your session has expired. Please sign in again."
	case apperrors.Is(err, apperrors.ErrNotAuthenticated):
		return LevelInfo, "Please sign in to continue."
	case apperrors.Is(err, apperrors.ErrNoResponse):
		return LevelError, "Cannot reach the Learn Link server."
	}

	var apiErr *apperrors.APIError
	if apperrors.As(err, &apiErr) && apiErr.Message != "" {
		return LevelError, apiErr.Message
	}
	return LevelError, err.Error()
}

// Badge is the display form of a status value
type Badge struct {
	Label string
	Level Level
}
