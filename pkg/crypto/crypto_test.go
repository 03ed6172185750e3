package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("not-base64!!!")
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	m, err := New(testKey(t))
	require.NoError(t, err)

	for _, plaintext := range []string{"", "a", "192.168.1.50:8080", "turtlebp"} {
		blob, err := m.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := m.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	m, err := New(testKey(t))
	require.NoError(t, err)

	a, err := m.Encrypt("same input")
	require.NoError(t, err)
	b, err := m.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	m, err := New(testKey(t))
	require.NoError(t, err)

	blob, err := m.Encrypt("10.0.0.1:443")
	require.NoError(t, err)

	for i := range blob {
		tampered := make([]byte, len(blob))
		copy(tampered, blob)
		tampered[i] ^= 0x01

		_, err := m.Decrypt(tampered)
		assert.ErrorIs(t, err, ErrAuthentication, "byte %d", i)
	}
}

func TestDecryptRejectsTruncatedBlob(t *testing.T) {
	m, err := New(testKey(t))
	require.NoError(t, err)

	_, err = m.Decrypt(nil)
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = m.Decrypt([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	m1, err := New(testKey(t))
	require.NoError(t, err)
	m2, err := New(testKey(t))
	require.NoError(t, err)

	blob, err := m1.Encrypt("secret")
	require.NoError(t, err)

	_, err = m2.Decrypt(blob)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestHashValueDeterministicAcrossInstances(t *testing.T) {
	key := testKey(t)

	m1, err := New(key)
	require.NoError(t, err)
	m2, err := New(key)
	require.NoError(t, err)

	h1 := m1.HashValue("203.0.113.7:9876")
	h2 := m2.HashValue("203.0.113.7:9876")

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, m1.HashValue("203.0.113.7:9877"))
}

func TestHashValueDiffersPerKey(t *testing.T) {
	m1, err := New(testKey(t))
	require.NoError(t, err)
	m2, err := New(testKey(t))
	require.NoError(t, err)

	assert.NotEqual(t, m1.HashValue("same"), m2.HashValue("same"))
}
