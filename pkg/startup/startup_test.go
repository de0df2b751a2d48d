package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStartup(maxAttempts int) *Startup {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	s.backoffUnit = time.Millisecond
	return s
}

func TestStartup_StartsInDependencyOrder(t *testing.T) {
	s := newTestStartup(1)
	var started []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			started = append(started, name)
			return nil
		}
	}

	s.AddDependency(&Dependency{Name: "http", Requires: []string{"database", "migrations"}, StartFunc: record("http")})
	s.AddDependency(&Dependency{Name: "migrations", Requires: []string{"database"}, StartFunc: record("migrations")})
	s.AddDependency(&Dependency{Name: "database", StartFunc: record("database")})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"database", "migrations", "http"}, started)
	assert.Equal(t, StartupStatusStarted, s.Status("http"))
}

func TestStartup_RetriesUntilDependencyComesUp(t *testing.T) {
	s := newTestStartup(3)
	calls := 0
	s.AddDependency(&Dependency{Name: "redis", StartFunc: func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, calls)
}

func TestStartup_FailsAfterMaxAttempts(t *testing.T) {
	s := newTestStartup(2)
	cause := errors.New("kafka unavailable")
	s.AddDependency(&Dependency{Name: "kafka", StartFunc: func(context.Context) error { return cause }})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StartupStatusFailed, s.Status("kafka"))
}

func TestStartup_UnknownDependency(t *testing.T) {
	s := newTestStartup(1)
	s.AddDependency(&Dependency{Name: "http", Requires: []string{"graph"}})

	assert.Error(t, s.Start(context.Background()))
}

func TestStartup_StopReverseOrder(t *testing.T) {
	s := newTestStartup(1)
	var stopped []string
	for _, name := range []string{"database", "kafka", "http"} {
		name := name
		s.AddDependency(&Dependency{Name: name, StopFunc: func(context.Context) error {
			stopped = append(stopped, name)
			return nil
		}})
	}

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"http", "kafka", "database"}, stopped)
}
