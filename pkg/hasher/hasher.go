package hasher

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

const apiKeyLength = 32

// HashAPIKey returns the bcrypt hash to configure as API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	return string(bytes), err
}

func APIKeyMatches(key, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// GenerateAPIKey returns a random url-safe key and its hash.
func GenerateAPIKey() (key, hash string, err error) {
	bytes := make([]byte, apiKeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}
	key = base64.RawURLEncoding.EncodeToString(bytes)
	hash, err = HashAPIKey(key)
	if err != nil {
		return "", "", err
	}
	return key, hash, nil
}
