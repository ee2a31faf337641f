package shared

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DocumentNumber builds a human-readable document number such as
// PO-20240501-3F2A9C1B7D4E. The date comes from at; the suffix is random.
func DocumentNumber(prefix string, at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return prefix + "-" + at.UTC().Format("20060102") + "-" + suffix
}
