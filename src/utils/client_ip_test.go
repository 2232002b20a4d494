package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetClientIP(t *testing.T) {
	t.Run("falls back to remote addr", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/test", nil)
		r.RemoteAddr = "10.0.0.5:43022"
		assert.Equal(t, "10.0.0.5", GetClientIP(r))
	})

	t.Run("x-forwarded-for", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/test", nil)
		r.Header.Set("X-Forwarded-For", "52.89.214.238")
		assert.Equal(t, "52.89.214.238", GetClientIP(r))
	})

	t.Run("first entry of a proxy chain wins", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/test", nil)
		r.Header.Set("X-Forwarded-For", "52.89.214.238, 172.16.0.1, 10.0.0.1")
		assert.Equal(t, "52.89.214.238", GetClientIP(r))
	})

	t.Run("header precedence", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/test", nil)
		r.Header.Set("Fly-Client-IP", "34.212.75.30")
		r.Header.Set("X-Forwarded-For", "52.89.214.238")
		assert.Equal(t, "52.89.214.238", GetClientIP(r))
	})
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " 1.2.3.4, 5.6.7.8 ,,")
	assert.Equal(t, []string{"1.2.3.4", "5.6.7.8"}, GetEnvList("TEST_LIST"))

	t.Setenv("TEST_LIST", "")
	assert.Nil(t, GetEnvList("TEST_LIST"))
}

func TestGetEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "True", "YES", "on"} {
		t.Setenv("TEST_BOOL", v)
		assert.True(t, GetEnvBool("TEST_BOOL"), v)
	}

	for _, v := range []string{"", "0", "false", "no"} {
		t.Setenv("TEST_BOOL", v)
		assert.False(t, GetEnvBool("TEST_BOOL"), v)
	}
}
