package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	// ResetCodeTTL bounds the 6-digit code the user types in.
	ResetCodeTTL = 10 * time.Minute
	// ResetTokenTTL bounds the opaque token that replaces a verified code
	// for the final password-set call.
	ResetTokenTTL = 15 * time.Minute
)

// GenerateCode creates a 6-digit zero-padded numeric code using crypto/rand.
func GenerateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenerateOpaqueToken returns a hex-encoded random token of length bytes.
func GenerateOpaqueToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
