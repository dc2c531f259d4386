package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"idlegate/internal/constants"
)

const EnvSecret = "IDLEGATE_SECRET"

var (
	cookieSigningKey []byte
	signingKeyOnce   sync.Once
)

// DeriveKey stretches a configured secret into a cookie signing key.
func DeriveKey(secret string) []byte {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(constants.AppName), []byte("session-cookie"))
	if _, err := io.ReadFull(r, key); err != nil {
		panic("failed to derive cookie signing key: " + err.Error())
	}
	return key
}

func getCookieSigningKey() []byte {
	signingKeyOnce.Do(func() {
		if secret := os.Getenv(EnvSecret); secret != "" {
			cookieSigningKey = DeriveKey(secret)
			return
		}
		cookieSigningKey = make([]byte, 32)
		if _, err := rand.Read(cookieSigningKey); err != nil {
			panic("failed to generate cookie signing key: " + err.Error())
		}
	})
	return cookieSigningKey
}

// New creates a session for userID expiring after ttl.
func New(userID string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func sign(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

func SignCookieValue(id string) string {
	return id + ":" + sign(getCookieSigningKey(), id)
}

func VerifyCookieValue(cookieValue string) (string, bool) {
	id, providedSig, ok := splitCookieValue(cookieValue)
	if !ok {
		return "", false
	}
	expectedSig := sign(getCookieSigningKey(), id)
	if subtle.ConstantTimeCompare([]byte(providedSig), []byte(expectedSig)) != 1 {
		return "", false
	}
	return id, true
}

func splitCookieValue(value string) (string, string, bool) {
	idx := strings.LastIndexByte(value, ':')
	if idx <= 0 || idx >= len(value)-1 {
		return "", "", false
	}
	return value[:idx], value[idx+1:], true
}
