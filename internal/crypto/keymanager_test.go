package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestEncryptDecryptToken(t *testing.T) {
	blob, err := EncryptToken("s3cret-admin-token", "correct horse")
	check.Nil(t, err)

	token, err := DecryptToken(blob, "correct horse")
	check.Nil(t, err)
	check.Equal(t, "s3cret-admin-token", token)
}

func TestDecryptTokenWrongPassword(t *testing.T) {
	blob, err := EncryptToken("s3cret-admin-token", "correct horse")
	check.Nil(t, err)

	_, err = DecryptToken(blob, "battery staple")
	check.NotNil(t, err)
}

func TestEncryptTokenValidation(t *testing.T) {
	_, err := EncryptToken("", "pw")
	check.NotNil(t, err)
	_, err = EncryptToken("token", "")
	check.NotNil(t, err)
}

func TestLoadToken(t *testing.T) {
	// Raw token wins.
	token, err := LoadToken(TokenConfig{RawToken: "direct"})
	check.Nil(t, err)
	check.Equal(t, "direct", token)

	// Keystore path.
	blob, err := EncryptToken("stored", "pw")
	check.Nil(t, err)
	path := filepath.Join(t.TempDir(), "keystore.json")
	check.Nil(t, os.WriteFile(path, blob, 0o600))

	token, err = LoadToken(TokenConfig{KeystorePath: path, Password: "pw"})
	check.Nil(t, err)
	check.Equal(t, "stored", token)

	// Nothing configured.
	_, err = LoadToken(TokenConfig{})
	check.NotNil(t, err)
}
