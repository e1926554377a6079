package preview

import (
	"errors"
	"testing"
)

func TestBoundaryGuard(t *testing.T) {
	b := NewBoundary()
	if err := b.Guard(func() error { return nil }); err != nil {
		t.Fatalf("Guard(nil) = %v", err)
	}
	if b.State() != Healthy {
		t.Fatal("boundary failed on success")
	}

	boom := errors.New("boom")
	if err := b.Guard(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("Guard = %v, want boom", err)
	}
	if b.State() != Failed || !errors.Is(b.Err(), boom) {
		t.Errorf("state = %v err = %v", b.State(), b.Err())
	}
}

func TestBoundaryRecoversPanic(t *testing.T) {
	b := NewBoundary()
	cause := errors.New("nil mesh")
	err := b.Guard(func() error { panic(cause) })

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Guard = %v, want PanicError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("PanicError does not unwrap to the panic value")
	}
	if len(pe.Stack) == 0 {
		t.Error("missing stack")
	}
	if b.State() != Failed {
		t.Error("boundary healthy after panic")
	}

	err = NewBoundary().Guard(func() error { panic("plain string") })
	if !errors.As(err, &pe) || pe.Unwrap() != nil {
		t.Errorf("string panic = %v", err)
	}
}

func TestBoundaryRetry(t *testing.T) {
	b := NewBoundary()
	if _, err := b.Retry(); !errors.Is(err, ErrNotFailed) {
		t.Fatalf("Retry healthy = %v", err)
	}

	for want := uint64(1); want <= 3; want++ {
		b.Fail(errors.New("again"))
		key, err := b.Retry()
		if err != nil {
			t.Fatal(err)
		}
		if key != want || b.Key() != want {
			t.Errorf("key = %d, want %d", key, want)
		}
		if b.State() != Healthy || b.Err() != nil {
			t.Error("retry did not clear failure")
		}
	}
}

func TestBoundaryReset(t *testing.T) {
	b := NewBoundary()
	b.Fail(errors.New("x"))
	b.Retry()
	b.Fail(errors.New("y"))
	b.Reset()
	if b.State() != Healthy || b.Key() != 1 {
		t.Errorf("after reset state = %v key = %d", b.State(), b.Key())
	}
	b.Fail(nil)
	if b.State() != Healthy {
		t.Error("Fail(nil) tripped the boundary")
	}
}

func TestFallback(t *testing.T) {
	light, dark := Fallback(false), Fallback(true)
	if light.Message != FallbackMessage || light.RetryLabel != FallbackRetryLabel {
		t.Errorf("fallback text = %+v", light)
	}
	if light.Height != FallbackHeight {
		t.Errorf("height = %d", light.Height)
	}
	if light.Border == dark.Border || light.Background == dark.Background {
		t.Error("dark fallback uses light colors")
	}
}
