package services

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// maxSecretBytes is the bcrypt input limit.
const maxSecretBytes = 72

// AccessGuard hashes tournament passwords and checks supplied ones against the stored hash.
type AccessGuard struct {
	cost int
}

func NewAccessGuard(cost int) *AccessGuard {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AccessGuard{cost: cost}
}

// Hash returns the stored form of secret. An empty secret leaves the tournament unprotected.
func (g *AccessGuard) Hash(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}
	if len(secret) > maxSecretBytes {
		return "", ErrSecretTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), g.cost)
	if err != nil {
		return "", fmt.Errorf("ошибка хеширования пароля: %w", err)
	}
	return string(hashed), nil
}

// Verify succeeds for any secret when hash is empty.
func (g *AccessGuard) Verify(hash, secret string) error {
	if hash == "" {
		return nil
	}
	if secret == "" || len(secret) > maxSecretBytes {
		return ErrInvalidSecret
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidSecret
		}
		return fmt.Errorf("failed to compare password hash: %w", err)
	}
	return nil
}
