package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustStdGCM(t *testing.T) cipher.AEAD {
	t.Helper()
	key, err := hex.DecodeString(testKey)
	require.NoError(t, err)
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)
	return aead
}

func TestEncryptIP_IPv4(t *testing.T) {
	c := newTestCipher(t)

	env, err := c.EncryptIP("192.168.1.1", "ip-hash-salt")
	require.NoError(t, err)
	assert.Equal(t, "192.168.*.*", env.Masked)
	assert.Equal(t, "192.168", env.Prefix)
	assert.NotEmpty(t, env.SuffixCipher)
	assert.Equal(t, Hash("192.168.1.1", "ip-hash-salt"), env.Hash)

	suffix, ok := c.Decrypt(env.SuffixCipher)
	require.True(t, ok)
	assert.Equal(t, "1.1", suffix)

	assert.True(t, strings.HasPrefix(env.Sealed(), "192.168.~"))
	opened, ok := c.OpenIP(env.Sealed())
	require.True(t, ok)
	assert.Equal(t, "192.168.1.1", opened)
}

func TestEncryptIP_IPv6(t *testing.T) {
	c := newTestCipher(t)

	env, err := c.EncryptIP("2001:db8::1", "ip-hash-salt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(env.Masked, "2001"))
	assert.True(t, strings.HasSuffix(env.Masked, "***"))
	assert.Empty(t, env.Prefix)
	assert.NotEmpty(t, env.Hash)

	opened, ok := c.OpenIP(env.Sealed())
	require.True(t, ok)
	assert.Equal(t, "2001:db8::1", opened)

	short, err := c.EncryptIP("::1", "s")
	require.NoError(t, err)
	opened, ok = c.OpenIP(short.Sealed())
	require.True(t, ok)
	assert.Equal(t, "::1", opened)
}

func TestEncryptIP_MappedMatchesIPv4(t *testing.T) {
	c := newTestCipher(t)

	mapped, err := c.EncryptIP("::ffff:192.168.1.1", "salt")
	require.NoError(t, err)
	plain, err := c.EncryptIP("192.168.1.1", "salt")
	require.NoError(t, err)

	assert.Equal(t, "192.168.*.*", mapped.Masked)
	assert.Equal(t, plain.Hash, mapped.Hash)
}

func TestEncryptIP_Empty(t *testing.T) {
	c := newTestCipher(t)
	env, err := c.EncryptIP("", "salt")
	require.NoError(t, err)
	assert.Equal(t, IPEnvelope{}, env)
	assert.Empty(t, env.Sealed())
}

func TestOpenIP(t *testing.T) {
	c := newTestCipher(t)

	whole, err := c.Encrypt("198.51.100.4")
	require.NoError(t, err)
	got, ok := c.OpenIP(whole)
	require.True(t, ok)
	assert.Equal(t, "198.51.100.4", got)

	got, ok = c.OpenIP("198.51.100.4")
	require.True(t, ok)
	assert.Equal(t, "198.51.100.4", got, "legacy plaintext passes through")

	_, ok = c.OpenIP("198.51.~garbage")
	assert.False(t, ok)

	_, ok = c.OpenIP("")
	assert.False(t, ok)
}

func TestMaskIP(t *testing.T) {
	assert.Equal(t, "10.0.*.*", MaskIP("10.0.3.4"))
	assert.Equal(t, "10.0.*.*", MaskIP(" ::ffff:10.0.3.4 "))
	assert.Equal(t, "fe80***", MaskIP("fe80::1%eth0"))
	assert.Empty(t, MaskIP(""))
}
