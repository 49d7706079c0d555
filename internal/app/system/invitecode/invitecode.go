// internal/app/system/invitecode/invitecode.go
// Package invitecode generates the short human-entry codes used to join
// rooms.
//
// Codes are Length characters drawn uniformly from Alphabet (36^8 ≈ 2.8e12
// combinations). Uniqueness is NOT checked here; the rooms collection's
// unique index is authoritative and the room store regenerates on a
// duplicate-key error.
package invitecode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Length   = 8
)

var alphabetLen = big.NewInt(int64(len(Alphabet)))

// Generator produces candidate invite codes.
type Generator func() (string, error)

// New returns a random code.
func New() (string, error) {
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("invite code: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Valid reports whether code has the expected length and alphabet. It
// expects an already-normalized (uppercase) code.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
