package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretEqual(t *testing.T) {
	assert.True(t, SecretEqual("s3cret", "s3cret"))
	assert.False(t, SecretEqual("s3cre", "s3cret"))
	assert.False(t, SecretEqual("", ""))
	assert.False(t, SecretEqual("anything", ""))
	assert.False(t, SecretEqual("", "s3cret"))
}

func TestParseBasicAuth(t *testing.T) {
	user, pass, ok := ParseBasicAuth(BasicAuthHeader("admin", "pa:ss"))
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "pa:ss", pass)

	for _, bad := range []string{"", "Basic", "Bearer abc", "Basic !!!", "Basic " + "YWRtaW4="} {
		_, _, ok := ParseBasicAuth(bad)
		assert.False(t, ok, bad)
	}
}
