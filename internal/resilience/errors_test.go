package resilience

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransientDetectsWrappedTransientError(t *testing.T) {
	base := NewTransientError(eris.New("http 503 from feed"), 503)
	assert.True(t, IsTransient(base))
	assert.True(t, IsTransient(eris.Wrap(base, "fetch roles page at offset 200")))
}

func TestIsTransientMatchesNetworkFailureText(t *testing.T) {
	cases := []string{
		"read tcp 10.0.0.1:443: connection reset by peer",
		"write: broken pipe",
		"dial tcp: lookup feed.example.com: no such host",
		"net/http: TLS handshake timeout",
		"read tcp: i/o timeout",
	}
	for _, msg := range cases {
		assert.True(t, IsTransient(eris.New(msg)), msg)
	}
}

func TestIsTransientRejectsPermanentErrors(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("http 400 from feed")))
	assert.False(t, IsTransient(eris.New("role not found")))
	assert.False(t, IsTransient(ErrCircuitOpen))
}

func TestTransientErrorPreservesCause(t *testing.T) {
	cause := eris.New("http 429 from feed")
	te := NewTransientError(cause, 429)
	assert.Equal(t, cause.Error(), te.Error())
	assert.Equal(t, 429, te.StatusCode)
	require.True(t, eris.Is(te, cause))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
