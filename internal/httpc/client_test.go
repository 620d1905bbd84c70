package httpc

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	c := NewClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)
	require.IsType(t, &http.Transport{}, c.Transport)

	assert.Equal(t, DefaultTimeout, NewClient(0).Timeout)
	assert.Equal(t, DefaultTimeout, NewClient(-time.Second).Timeout)
}

func TestNewStreamingClient(t *testing.T) {
	c := NewStreamingClient(2 * time.Second)
	assert.Zero(t, c.Timeout, "streams are bounded by the request context")

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, tr.ResponseHeaderTimeout)

	tr, ok = NewStreamingClient(0).Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultTimeout, tr.ResponseHeaderTimeout)
}

func TestNewTransport(t *testing.T) {
	tr := NewTransport()
	assert.Equal(t, DefaultIdleConnTimeout, tr.IdleConnTimeout)
	assert.Equal(t, DefaultTLSTimeout, tr.TLSHandshakeTimeout)
	assert.Equal(t, 10, tr.MaxIdleConnsPerHost)
}
