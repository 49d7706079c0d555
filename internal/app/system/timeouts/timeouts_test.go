package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	got := Current()
	want := Config{
		Ping:       DefaultPing,
		Short:      DefaultShort,
		Medium:     DefaultMedium,
		Long:       DefaultLong,
		Generation: DefaultGeneration,
	}
	if got != want {
		t.Errorf("Current() = %+v, want %+v", got, want)
	}
}

func TestConfigure_IgnoresZero(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Configure(Config{Short: 7 * time.Second, Generation: time.Minute})

	if Short() != 7*time.Second {
		t.Errorf("Short() = %v", Short())
	}
	if Generation() != time.Minute {
		t.Errorf("Generation() = %v", Generation())
	}
	if Medium() != DefaultMedium {
		t.Errorf("Medium() = %v, want default", Medium())
	}
}

func TestConfigureFromEnv(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("TIMEOUT_PING", "500ms")
	t.Setenv("TIMEOUT_GENERATION", "45s")
	t.Setenv("TIMEOUT_LONG", "not-a-duration")
	t.Setenv("TIMEOUT_SHORT", "-1s")

	if n := ConfigureFromEnv(); n != 2 {
		t.Errorf("configured %d values, want 2", n)
	}
	if Ping() != 500*time.Millisecond {
		t.Errorf("Ping() = %v", Ping())
	}
	if Generation() != 45*time.Second {
		t.Errorf("Generation() = %v", Generation())
	}
	if Long() != DefaultLong {
		t.Errorf("Long() = %v, want default", Long())
	}
	if Short() != DefaultShort {
		t.Errorf("Short() = %v, want default", Short())
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	<-ctx.Done()
	cancel()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v", ctx.Err())
	}
}
