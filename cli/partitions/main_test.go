package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	at := time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

	m, err := parseMonth("", at)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC), m)

	m, err = parseMonth("2026-04", at)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), m)

	_, err = parseMonth("April", at)
	assert.Error(t, err)
}
