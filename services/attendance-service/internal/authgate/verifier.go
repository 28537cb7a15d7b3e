package authgate

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Verifier decides what is stored for a password and how a login attempt is checked.
type Verifier interface {
	// Prepare returns the value persisted in the user record.
	Prepare(password string) (string, error)
	// Verify reports whether password matches the stored value.
	Verify(stored, password string) bool
	Name() string
}

// IdentifierOnly accepts any password once the identifier matches.
type IdentifierOnly struct{}

func (IdentifierOnly) Prepare(password string) (string, error) { return password, nil }
func (IdentifierOnly) Verify(string, string) bool              { return true }
func (IdentifierOnly) Name() string                            { return "identifier" }

// Plaintext stores the password as given and compares it exactly.
type Plaintext struct{}

func (Plaintext) Prepare(password string) (string, error) { return password, nil }

func (Plaintext) Verify(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

func (Plaintext) Name() string { return "plaintext" }

type Bcrypt struct {
	Cost int
}

func (b Bcrypt) Prepare(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (Bcrypt) Verify(stored, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}

func (Bcrypt) Name() string { return "bcrypt" }

// VerifierFor maps AUTH_MODE values to a strategy.
func VerifierFor(mode string) (Verifier, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "plaintext":
		return Plaintext{}, nil
	case "identifier":
		return IdentifierOnly{}, nil
	case "bcrypt":
		return Bcrypt{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}
