package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("OPTIFLOW_TEST_MODE") == "" {
			_ = os.Setenv("OPTIFLOW_TEST_MODE", "1")
		}
	})
}
