package orders

import (
	"context"
	"crypto/rand"
	"math/big"

	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 8
)

type codeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// generateCode draws random 8-character codes until one is free. The unique
// index on orders.code still backstops a draw that races another insert.
func generateCode(ctx context.Context, checker codeChecker, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		exists, err := checker.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a free order code")
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
