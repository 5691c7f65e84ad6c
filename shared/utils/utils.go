package utils

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateID generates a random document id.
func GenerateID() string {
	return uuid.NewString()
}

var idempotencyNamespace = uuid.MustParse("8c5b0a9e-3f7d-4b61-9d2e-6a1f0c4e7b21")

// IdempotentID derives a stable document id from a client-supplied key, scoped
// to one user and one operation so keys never collide across wallets.
func IdempotentID(userID, operation, key string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(userID+"/"+operation+"/"+key)).String()
}

// DisplayName falls back to the local part of an email address.
func DisplayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	if email != "" {
		return email
	}
	return "User"
}
