package vault_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexartec/gencore/internal/vault"
)

func newVault(t *testing.T) *vault.Vault {
	t.Helper()
	key := make([]byte, vault.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	v, err := vault.New(key)
	require.NoError(t, err)
	return v
}

func TestRoundTrip(t *testing.T) {
	v := newVault(t)
	aad := vault.OwnerAAD("42", "essential")

	sealed, err := v.Encrypt([]byte("gk_secret"), aad)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(sealed, []byte("gk_secret")))

	plain, err := v.Decrypt(sealed, aad)
	require.NoError(t, err)
	assert.Equal(t, "gk_secret", string(plain))
}

func TestNoncesDiffer(t *testing.T) {
	v := newVault(t)
	a, err := v.Encrypt([]byte("same"), nil)
	require.NoError(t, err)
	b, err := v.Encrypt([]byte("same"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestWrongOwnerFails(t *testing.T) {
	v := newVault(t)
	sealed, err := v.Encrypt([]byte("gk_secret"), vault.OwnerAAD("42", "essential"))
	require.NoError(t, err)

	_, err = v.Decrypt(sealed, vault.OwnerAAD("43", "essential"))
	assert.ErrorIs(t, err, vault.ErrCiphertext)

	_, err = v.Decrypt(sealed, vault.OwnerAAD("42", "basic"))
	assert.ErrorIs(t, err, vault.ErrCiphertext)
}

func TestTamperAndTruncate(t *testing.T) {
	v := newVault(t)
	sealed, err := v.Encrypt([]byte("gk_secret"), nil)
	require.NoError(t, err)

	sealed[len(sealed)-1] ^= 0xff
	_, err = v.Decrypt(sealed, nil)
	assert.ErrorIs(t, err, vault.ErrCiphertext)

	_, err = v.Decrypt([]byte("short"), nil)
	assert.ErrorIs(t, err, vault.ErrCiphertext)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := vault.New([]byte("too short"))
	assert.ErrorIs(t, err, vault.ErrKeySize)
}

func TestDecodeKey(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, vault.KeySize)

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawURLEncoding} {
		got, err := vault.DecodeKey(enc.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}

	_, err := vault.DecodeKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, vault.ErrKeySize)

	_, err = vault.DecodeKey("!!not base64!!")
	assert.Error(t, err)
}

type fakeSecrets struct {
	value *string
	err   error
	asked string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestKeyFromSecretsManager(t *testing.T) {
	raw := bytes.Repeat([]byte{1}, vault.KeySize)
	sm := &fakeSecrets{value: aws.String(base64.StdEncoding.EncodeToString(raw))}

	key, err := vault.KeyFromSecretsManager(context.Background(), sm, "gencore/vault")
	require.NoError(t, err)
	assert.Equal(t, raw, key)
	assert.Equal(t, "gencore/vault", sm.asked)

	_, err = vault.KeyFromSecretsManager(context.Background(), &fakeSecrets{err: errors.New("denied")}, "x")
	assert.Error(t, err)

	_, err = vault.KeyFromSecretsManager(context.Background(), &fakeSecrets{}, "x")
	assert.Error(t, err)
}
