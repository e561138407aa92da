package identity

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Identity is the stable key for one end user's conversation. The same value
// is the session key, the Discord thread name, and the push routing key, so
// it must satisfy Discord's thread-name constraints up front.
type Identity string

// maxLength matches Discord's channel/thread name cap.
const maxLength = 100

var validate = validator.New()

// Parse validates a raw identity once at ingress. Everything downstream may
// assume the value is usable as a thread name verbatim.
func Parse(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("email is required")
	}
	if len(trimmed) > maxLength {
		return "", fmt.Errorf("email exceeds %d characters", maxLength)
	}
	if err := validate.Var(trimmed, "email"); err != nil {
		return "", fmt.Errorf("invalid email: %s", trimmed)
	}
	return Identity(trimmed), nil
}

func (id Identity) String() string {
	return string(id)
}
