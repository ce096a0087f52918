package session

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/xrak-labs/sessiond/pkg/crypto"
)

// CSRFHeaderName is the single header mutating requests must carry.
const CSRFHeaderName = "X-CSRF-Token"

const csrfSecretBytes = 32

// GenerateCSRFSecret returns a fresh high-entropy per-session secret.
func GenerateCSRFSecret() (string, error) {
	return crypto.GenerateToken(csrfSecretBytes)
}

// ExtractCSRFToken reads the CSRF token from request headers. Absence is not
// an error; it simply yields an empty token that will fail validation.
func ExtractCSRFToken(headers http.Header) string {
	return strings.TrimSpace(headers.Get(CSRFHeaderName))
}

// ValidateCSRF checks the supplied token against the session secret. Both
// must be non-empty and exactly equal; the compare is constant-time.
func ValidateCSRF(secret, token string) bool {
	if secret == "" || token == "" {
		return false
	}
	if len(secret) != len(token) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(token)) == 1
}
