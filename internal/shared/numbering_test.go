package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentNumberUsesClockAndUniqueSuffix(t *testing.T) {
	at := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		n := DocumentNumber("JV", at)
		require.Regexp(t, `^JV-20240501-[0-9A-F]{12}$`, n)
		seen[n] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}
