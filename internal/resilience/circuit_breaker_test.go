package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend unavailable")

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.RecordResult(false)
	}
}

func TestCircuitBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wait     time.Duration
		probe    []bool
		want     CircuitState
	}{
		{"stays closed below threshold", 2, 0, nil, StateClosed},
		{"opens at threshold", 3, 0, nil, StateOpen},
		{"closes after successful probes", 3, 150 * time.Millisecond, []bool{true, true}, StateClosed},
		{"reopens on failed probe", 3, 150 * time.Millisecond, []bool{true, false}, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker("ai", 3, 100*time.Millisecond)
			trip(cb, tt.failures)
			if tt.wait > 0 {
				time.Sleep(tt.wait)
			}
			for _, ok := range tt.probe {
				cb.RecordResult(ok)
			}
			if got := cb.GetState(); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenAdmitsProbe(t *testing.T) {
	cb := NewCircuitBreaker("tts_cartesia", 1, 50*time.Millisecond)
	trip(cb, 1)

	if cb.allowRequest() {
		t.Fatal("Expected open circuit to reject requests")
	}

	time.Sleep(80 * time.Millisecond)
	if !cb.allowRequest() {
		t.Fatal("Expected a probe after the reset timeout")
	}
	if cb.GetState() != StateHalfOpen {
		t.Errorf("Expected half-open, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_Call(t *testing.T) {
	cb := NewCircuitBreaker("object_store", 2, time.Second)

	if err := cb.Call(func() error { return nil }, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := cb.Call(func() error { return errBackend }, nil); !errors.Is(err, errBackend) {
		t.Errorf("Expected backend error, got %v", err)
	}
	cb.Call(func() error { return errBackend }, nil)

	called := false
	err := cb.Call(func() error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Errorf("Expected ErrCircuitOpen without calling fn, got %v (called=%v)", err, called)
	}
}

func TestCircuitBreaker_IgnoresUncountedFailures(t *testing.T) {
	cb := NewCircuitBreaker("ai", 1, time.Second)

	authErr := errors.New("unauthorized")
	onlyBackend := func(err error) bool { return errors.Is(err, errBackend) }

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return authErr }, onlyBackend); err != authErr {
			t.Fatalf("Expected the call error to be returned, got %v", err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected uncounted failures to keep circuit closed, got %s", cb.GetState())
	}

	cb.Call(func() error { return errBackend }, onlyBackend)
	if cb.GetState() != StateOpen {
		t.Errorf("Expected counted failure to open circuit, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_StatsAndReset(t *testing.T) {
	cb := NewCircuitBreaker("ai", 5, time.Second)
	cb.RecordResult(true)
	cb.RecordResult(true)
	cb.RecordResult(false)

	state, requests, failures, rate := cb.GetStats()
	if state != StateClosed || requests != 3 || failures != 1 {
		t.Errorf("Unexpected stats: %s %d %d", state, requests, failures)
	}
	if rate < 33.0 || rate > 34.0 {
		t.Errorf("Expected failure rate around 33%%, got %.2f%%", rate)
	}

	trip(cb, 5)
	cb.Reset()
	state, requests, failures, _ = cb.GetStats()
	if state != StateClosed || requests != 0 || failures != 0 {
		t.Errorf("Expected cleared stats after reset, got %s %d %d", state, requests, failures)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	cb := NewCircuitBreaker("tts_deepgram", 1, time.Second)

	var got []CircuitState
	cb.OnStateChange(func(name string, state CircuitState) {
		if name != "tts_deepgram" {
			t.Errorf("Expected name tts_deepgram, got %s", name)
		}
		got = append(got, state)
	})

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.Reset()

	if len(got) != 2 || got[0] != StateOpen || got[1] != StateClosed {
		t.Errorf("Expected transitions [open closed], got %v", got)
	}
}
