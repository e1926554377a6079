package preview

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// ErrNotFailed is returned by Retry when there is nothing to recover from.
var ErrNotFailed = errors.New("preview boundary is not in the failed state")

// BoundaryState is the state of a failure boundary.
type BoundaryState int

const (
	Healthy BoundaryState = iota
	Failed
)

func (s BoundaryState) String() string {
	if s == Failed {
		return "failed"
	}
	return "healthy"
}

// PanicError is a panic recovered inside a guarded pipeline step.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("preview pipeline panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Boundary contains failures of the preview pipeline. Once failed it
// stays failed until a user-triggered Retry, which bumps the remount key
// so everything behind the boundary is rebuilt from scratch. Retries are
// unlimited and immediate.
type Boundary struct {
	mu    sync.Mutex
	state BoundaryState
	err   error
	key   uint64
}

// NewBoundary returns a healthy boundary.
func NewBoundary() *Boundary {
	return &Boundary{}
}

// Fail records err and switches to Failed. A nil err is ignored.
func (b *Boundary) Fail(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Failed
	b.err = err
}

// Guard runs fn, converting a returned error or a panic into a failure.
// It returns whatever error fn produced.
func (b *Boundary) Guard(fn func() error) error {
	err := capture(fn)
	b.Fail(err)
	return err
}

// capture runs fn and turns a panic into a *PanicError.
func capture(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// Retry clears the failure and returns the new remount key.
func (b *Boundary) Retry() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Failed {
		return b.key, ErrNotFailed
	}
	b.state = Healthy
	b.err = nil
	b.key++
	return b.key, nil
}

// Reset returns to Healthy without touching the remount key. It is used
// when the boundary itself is torn down and later rebuilt.
func (b *Boundary) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Healthy
	b.err = nil
}

// State returns the current state.
func (b *Boundary) State() BoundaryState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the recorded failure, nil while healthy.
func (b *Boundary) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Key returns the remount key.
func (b *Boundary) Key() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

// Fallback UI text.
const (
	FallbackMessage    = "Не удалось загрузить 3D-просмотр"
	FallbackRetryLabel = "Повторить"
	FallbackHeight     = 350
)

// FallbackView describes what replaces the preview while failed.
type FallbackView struct {
	Icon       string `json:"icon"`
	Message    string `json:"message"`
	RetryLabel string `json:"retryLabel"`
	Height     int    `json:"height"`
	Border     string `json:"border"`
	Background string `json:"background"`
}

// Fallback returns the fallback view for the given theme.
func Fallback(dark bool) FallbackView {
	v := FallbackView{
		Icon:       "warning",
		Message:    FallbackMessage,
		RetryLabel: FallbackRetryLabel,
		Height:     FallbackHeight,
		Border:     "#d9d9d9",
		Background: "#fafafa",
	}
	if dark {
		v.Border = "#333"
		v.Background = "#1a1a1a"
	}
	return v
}
