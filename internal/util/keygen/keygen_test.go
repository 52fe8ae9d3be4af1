package keygen

import (
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateRSAKeyPair(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateRSAKeyPair(DefaultBits)
	require.NoError(t, err)

	block, _ := pem.Decode(keyPair.PrivateKey)
	require.NotNil(t, block, "private key must be PEM")
	assert.Equal(t, "RSA PRIVATE KEY", block.Type)

	assert.True(t, strings.HasPrefix(string(keyPair.PublicKey), "ssh-rsa "))
	_, _, _, _, err = ssh.ParseAuthorizedKey(keyPair.PublicKey)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(keyPair.Fingerprint, "SHA256:"))
}

func TestGenerateRSAKeyPair_Unique(t *testing.T) {
	t.Parallel()
	a, err := GenerateRSAKeyPair(DefaultBits)
	require.NoError(t, err)
	b, err := GenerateRSAKeyPair(DefaultBits)
	require.NoError(t, err)

	assert.NotEqual(t, a.PublicKey, b.PublicKey)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateRSAKeyPair(DefaultBits)
	require.NoError(t, err)

	fp, err := Fingerprint(string(keyPair.PublicKey))
	require.NoError(t, err)
	assert.Equal(t, keyPair.Fingerprint, fp)

	_, err = Fingerprint("not a key")
	assert.Error(t, err)
}
