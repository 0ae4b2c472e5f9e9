package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevelopmentLoggerBuildsWithoutError(t *testing.T) {
	logger, err := New(Options{Development: true})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("hello")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "not-a-level"})
	assert.Error(t, err)
}

func TestNoopLoggerDiscardsOutput(t *testing.T) {
	logger := Noop()
	require.NotNil(t, logger)
	logger.Info("discarded")
}
