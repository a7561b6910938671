package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEncryptor_GenerateNewKey(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)
	assert.NotNil(t, enc)
	assert.NotNil(t, enc.identity)
	assert.NotNil(t, enc.recipient)
}

func TestNewEncryptor_WithProvidedKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	enc, err := NewEncryptor(key)
	require.NoError(t, err)
	assert.NotNil(t, enc)
}

func TestNewEncryptor_InvalidKey(t *testing.T) {
	_, err := NewEncryptor("invalid-key-format")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parsing identity")
}

func TestGenerateKey(t *testing.T) {
	key1, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEmpty(t, key1)

	key2, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEmpty(t, key2)

	assert.NotEqual(t, key1, key2)
}

func TestEncrypt_Decrypt(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	plaintext := []byte("sk-proj-abcdef0123456789")

	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncrypt_DifferentOutputEachTime(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	plaintext := []byte("same data")

	ciphertext1, err := enc.Encrypt(plaintext)
	require.NoError(t, err)

	ciphertext2, err := enc.Encrypt(plaintext)
	require.NoError(t, err)

	// Fresh file key per encryption, so ciphertexts never repeat
	assert.NotEqual(t, ciphertext1, ciphertext2)

	decrypted1, err := enc.Decrypt(ciphertext1)
	require.NoError(t, err)

	decrypted2, err := enc.Decrypt(ciphertext2)
	require.NoError(t, err)

	assert.Equal(t, plaintext, decrypted1)
	assert.Equal(t, plaintext, decrypted2)
}

func TestDecrypt_InvalidCiphertext(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	_, err = enc.Decrypt([]byte("not valid ciphertext"))
	assert.Error(t, err)
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, err := NewEncryptor("")
	require.NoError(t, err)

	plaintext := []byte("secret message")
	ciphertext, err := enc1.Encrypt(plaintext)
	require.NoError(t, err)

	enc2, err := NewEncryptor("")
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.Error(t, err, "a different identity must not decrypt the ciphertext")
}

func TestEncryptString_DecryptString(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	plaintext := "sk-user-supplied-openai-key"

	ciphertext, err := enc.EncryptString(plaintext)
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)

	// Base64 output is safe to store in a text column
	assert.NotContains(t, ciphertext, " ")

	decrypted, err := enc.DecryptString(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptString_InvalidBase64(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	_, err = enc.DecryptString("not valid base64!!!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decoding base64")
}

func TestDecryptString_ValidBase64ButInvalidCiphertext(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	_, err = enc.DecryptString("SGVsbG8gV29ybGQ=")
	assert.Error(t, err)
}

func TestEncrypt_EmptyData(t *testing.T) {
	enc, err := NewEncryptor("")
	require.NoError(t, err)

	// A cleared API key is stored as the empty string
	ciphertext, err := enc.Encrypt([]byte{})
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestGenerateRandomBytes(t *testing.T) {
	bytes, err := GenerateRandomBytes(32)
	require.NoError(t, err)
	assert.Len(t, bytes, 32)

	bytes2, err := GenerateRandomBytes(32)
	require.NoError(t, err)
	assert.NotEqual(t, bytes, bytes2)
}

func TestGenerateRandomString(t *testing.T) {
	// Invite tokens are 32-character random strings
	str1, err := GenerateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, str1, 32)

	str2, err := GenerateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, str2, 32)

	assert.NotEqual(t, str1, str2)
}

func TestEncryptor_KeyReuse(t *testing.T) {
	// Server restarts rebuild the encryptor from the configured key; stored
	// ciphertexts must survive that
	key, err := GenerateKey()
	require.NoError(t, err)

	enc1, err := NewEncryptor(key)
	require.NoError(t, err)

	enc2, err := NewEncryptor(key)
	require.NoError(t, err)

	plaintext := []byte("sk-survives-restart")
	ciphertext, err := enc1.Encrypt(plaintext)
	require.NoError(t, err)

	decrypted, err := enc2.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}
