package delivery

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const otpDigits = 4

var otpSpace = big.NewInt(10000)

// GenerateOTP returns a uniformly random 4-digit numeric code. Codes are scoped
// to a single request and are not checked for collisions.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func validOTP(code string) bool {
	if len(code) != otpDigits {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
