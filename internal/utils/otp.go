package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

func GenerateOTP() (string, error) {
	// 6-digit code; rand.Int draws from [0, max), so the bound is 10^6.
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func IsOTPExpired(createdAt time.Time, expiryDuration time.Duration) bool {
	return time.Since(createdAt) > expiryDuration
}

// FormatPhoneNumber normalizes to E.164 with the Vietnamese country code.
func FormatPhoneNumber(phone string) string {
	cleaned := ""
	for _, char := range phone {
		if char >= '0' && char <= '9' {
			cleaned += string(char)
		}
	}

	if len(cleaned) == 9 {
		return "+84" + cleaned
	}

	if len(cleaned) == 10 && cleaned[0] == '0' {
		return "+84" + cleaned[1:]
	}

	if len(cleaned) >= 11 && cleaned[:2] == "84" {
		return "+" + cleaned
	}

	return "+" + cleaned
}
