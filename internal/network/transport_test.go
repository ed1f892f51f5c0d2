package network

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRequest(origin, host string) *http.Request {
	req := httptest.NewRequest("GET", "http://"+host+"/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestIsAllowedOriginEmptyListAllowsAll(t *testing.T) {
	r := newRequest("https://evil.example", "game.example")
	assert.True(t, IsAllowedOrigin(r, nil))
}

func TestIsAllowedOriginNoHeaderAllowed(t *testing.T) {
	r := newRequest("", "game.example")
	assert.True(t, IsAllowedOrigin(r, []string{"https://game.example"}))
}

func TestIsAllowedOriginMatchInList(t *testing.T) {
	r := newRequest("https://game.example", "game.example")
	assert.True(t, IsAllowedOrigin(r, []string{"https://game.example"}))
}

func TestIsAllowedOriginRejectsUnlisted(t *testing.T) {
	r := newRequest("https://evil.example", "game.example")
	assert.False(t, IsAllowedOrigin(r, []string{"https://game.example"}))
}

func TestIsAllowedOriginMalformedRejected(t *testing.T) {
	r := newRequest("://not a url", "game.example")
	assert.False(t, IsAllowedOrigin(r, []string{"https://game.example"}))
}
