package dedup

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	a, err := Fingerprint(bytes.NewReader([]byte("hello dedup")))
	require.NoError(t, err)
	b, err := Fingerprint(bytes.NewReader([]byte("hello dedup")))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := Fingerprint(bytes.NewReader([]byte("hello dedup!")))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestFingerprintRewindsReader(t *testing.T) {
	r := bytes.NewReader([]byte("some content"))
	_, err := Fingerprint(r)
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "some content", string(data))
}
