package orders

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderNo(t *testing.T) {
	at := time.Date(2026, 9, 1, 11, 45, 2, 0, time.UTC)
	no := NewOrderNo(at)

	require.Len(t, no, 18)
	assert.True(t, strings.HasPrefix(no, "260901114502"))
	for _, c := range no[12:] {
		assert.Contains(t, noSuffixAlphabet, string(c))
	}
}

func TestNewOrderNoUnique(t *testing.T) {
	at := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		no := NewOrderNo(at)
		assert.False(t, seen[no], "duplicate order number %s", no)
		seen[no] = true
	}
}
