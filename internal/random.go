package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

const (
	opaqueIDSize  = 32
	namespaceSize = 7
)

// NewOpaqueID returns 32 random bytes as unpadded base64url. Used for session
// and token ids, which double as bearer credentials.
func NewOpaqueID() (string, error) {
	var raw [opaqueIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewRecordID returns a random UUID string for durable records.
func NewRecordID() string {
	return uuid.NewString()
}

// NewNamespace returns a short lowercase hex tenant prefix.
func NewNamespace() string {
	return compactUUID()[:namespaceSize]
}

// NewAPIKey returns "<prefix>-<32 upper hex>".
func NewAPIKey(prefix string) string {
	return prefix + "-" + strings.ToUpper(compactUUID())
}

// Fingerprint hashes the non-empty client attributes into a stable hex digest.
// An all-empty input yields "".
func Fingerprint(parts ...string) string {
	h := sha256.New()
	wrote := false
	for _, p := range parts {
		if p == "" {
			continue
		}
		h.Write([]byte(p))
		h.Write([]byte{0})
		wrote = true
	}
	if !wrote {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

func compactUUID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
