package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console debug", func(t *testing.T) {
		log, err := New(Config{Level: "debug", Format: "console"})
		require.NoError(t, err)
		log.Named("test").Debug("hello", String("k", "v"), Int("n", 1))
	})

	t.Run("json info", func(t *testing.T) {
		log, err := New(Config{Level: "info", Format: "json"})
		require.NoError(t, err)
		log.With(Bool("b", true)).Info("hello", Error(errors.New("boom")))
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New(Config{Level: "loud", Format: "console"})
		assert.Error(t, err)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := New(Config{Level: "info", Format: "xml"})
		assert.Error(t, err)
	})
}

func TestNop(t *testing.T) {
	log := NewNop()
	log.Named("a").Warn("ignored", Float64("f", 1.5))
	assert.NoError(t, log.Sync())
}
