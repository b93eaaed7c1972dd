package graph

import (
	"crypto/rand"
	"math/big"

	"github.com/oklog/ulid/v2"
)

// DefaultIDLength is the identifier length used for ports and blocks when
// none is configured.
const DefaultIDLength = 8

// GraphIDLength is the identifier length used for graphs.
const GraphIDLength = 32

const idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomIdentifier returns a short random alphanumeric identifier of the
// given length. Length defaults to DefaultIDLength when n <= 0.
func randomIdentifier(n int) string {
	if n <= 0 {
		n = DefaultIDLength
	}

	buf := make([]byte, n)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure is unrecoverable; fall back to a ulid-derived
			// byte so id generation never panics on a degraded entropy source.
			idx = big.NewInt(int64(ulid.Make()[i%16]) % max.Int64())
		}
		buf[i] = idAlphabet[idx.Int64()]
	}

	return string(buf)
}

// NewGraphID returns a fresh random graph identifier at the spec's configured
// length for graphs (32).
func NewGraphID() string {
	return randomIdentifier(GraphIDLength)
}
