package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv_Default(t *testing.T) {
	t.Setenv("ORDERS_TEST_STR", "")
	assert.Equal(t, "fallback", GetEnv("ORDERS_TEST_STR", "fallback"))

	t.Setenv("ORDERS_TEST_STR", "set")
	assert.Equal(t, "set", GetEnv("ORDERS_TEST_STR", "fallback"))
}

func TestGetEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("ORDERS_TEST_INT", "abc")
	assert.Equal(t, 7, GetEnvInt("ORDERS_TEST_INT", 7))

	t.Setenv("ORDERS_TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("ORDERS_TEST_INT", 7))
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("ORDERS_TEST_CHAIN", "8453")
	assert.Equal(t, int64(8453), GetEnvInt64("ORDERS_TEST_CHAIN", 1))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("ORDERS_TEST_BOOL", "true")
	assert.True(t, GetEnvBool("ORDERS_TEST_BOOL", false))

	t.Setenv("ORDERS_TEST_BOOL", "nope")
	assert.True(t, GetEnvBool("ORDERS_TEST_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("ORDERS_TEST_DUR", "750ms")
	assert.Equal(t, 750*time.Millisecond, GetEnvDuration("ORDERS_TEST_DUR", time.Second))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("ORDERS_TEST_LIST", " 0xabc, ,0xdef ")
	assert.Equal(t, []string{"0xabc", "0xdef"}, GetEnvList("ORDERS_TEST_LIST", nil))

	t.Setenv("ORDERS_TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, GetEnvList("ORDERS_TEST_LIST", []string{"x"}))
}
