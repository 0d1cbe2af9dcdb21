package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/keshon/soundboard-stats/internal/config"
)

func TestRun_StartupFailureReturnsError(t *testing.T) {
	err := run(&config.Config{StorageDriver: "redis"}, zerolog.Nop())
	assert.ErrorContains(t, err, `open usage store: unknown storage driver "redis"`)
}
