package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("PREPLENS_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnvOrDefault("PREPLENS_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("PREPLENS_TEST_MISSING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("PREPLENS_TEST_INT", "42")
	t.Setenv("PREPLENS_TEST_BAD_INT", "forty-two")
	assert.Equal(t, 42, GetEnvInt("PREPLENS_TEST_INT", 7))
	assert.Equal(t, 7, GetEnvInt("PREPLENS_TEST_BAD_INT", 7))
	assert.Equal(t, 7, GetEnvInt("PREPLENS_TEST_INT_MISSING", 7))
}
