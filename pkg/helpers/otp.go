package helpers

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

const (
	// CodeDigits is the width of a one-time code.
	CodeDigits = 6
	// CodeTTL is how long an issued one-time code stays valid.
	CodeTTL = 20 * time.Minute
)

var codeSpace = big.NewInt(1_000_000)

// CodeGenerator produces zero-padded numeric one-time codes and their expiry.
type CodeGenerator struct {
	TTL  time.Duration
	Rand io.Reader
	Now  func() time.Time
}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{TTL: CodeTTL, Rand: rand.Reader, Now: time.Now}
}

// Generate draws a code uniformly from 000000-999999.
func (g *CodeGenerator) Generate() (string, time.Time, error) {
	code, err := GenOTPCode(g.Rand)
	if err != nil {
		return "", time.Time{}, err
	}
	return code, g.Now().Add(g.TTL), nil
}

// GenOTPCode reads from r (crypto/rand when nil) and formats a 6-digit code.
func GenOTPCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}
