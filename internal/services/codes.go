package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet gives 36^n combinations for an n-symbol code; at 10+ symbols
// the space is over 3x10^15, so collisions across tens of thousands of
// certificates are negligible. The caller still verifies against persisted
// codes before committing and retries on collision.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	certificateCodeLength  = 12
	verificationCodeLength = 10

	// MaxCodeAttempts bounds the collision retry before giving up on one
	// participant with ErrCodeSpaceExhausted.
	MaxCodeAttempts = 5
)

type CodePair struct {
	CertificateCode  string
	VerificationCode string
}

// CodeGenerator draws certificate and verification codes from two distinct
// namespaces: the certificate code is grouped XXXX-XXXX-XXXX, the
// verification code is a flat 10-symbol string, so leaking one reveals no
// pattern for the other.
type CodeGenerator struct{}

func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{}
}

func (g *CodeGenerator) Generate() (CodePair, error) {
	cert, err := randomCode(certificateCodeLength)
	if err != nil {
		return CodePair{}, err
	}
	verification, err := randomCode(verificationCodeLength)
	if err != nil {
		return CodePair{}, err
	}
	return CodePair{
		CertificateCode:  cert[0:4] + "-" + cert[4:8] + "-" + cert[8:12],
		VerificationCode: verification,
	}, nil
}

func randomCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random symbol: %w", err)
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}
