package utils

import (
	"crypto/rand"
	"math/big"
)

// Logins allow lowercase letters and digits only.
const loginAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var alphabetSize = big.NewInt(int64(len(loginAlphabet)))

// GenerateRandomID returns n characters drawn from the login alphabet, or "" if the system RNG fails.
func GenerateRandomID(n int) string {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return ""
		}
		out[i] = loginAlphabet[idx.Int64()]
	}
	return string(out)
}
