package orders

import (
	"crypto/rand"
	"time"
)

const noSuffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewOrderNo builds the externally visible order number: a second-resolution
// timestamp plus a 6-char random suffix, e.g. "260901114502K3XQ8A". The
// payment gateway only ever sees this value.
func NewOrderNo(now time.Time) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i := range buf {
		buf[i] = noSuffixAlphabet[int(buf[i])%len(noSuffixAlphabet)]
	}
	return now.Format("060102150405") + string(buf)
}
