// Package guard switches binaries into test mode when imported from tests,
// so calling main skips network and database start-up.
package guard

import (
	"os"
	"sync"
)

// Env is the variable the binaries consult.
const Env = "SITEBOOKS_TEST_MODE"

var once sync.Once

func init() {
	Enable()
}

// Enable sets Env to 1 unless it is already set.
func Enable() {
	once.Do(func() {
		if os.Getenv(Env) == "" {
			_ = os.Setenv(Env, "1")
		}
	})
}
