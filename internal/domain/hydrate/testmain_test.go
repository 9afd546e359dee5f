package hydrate_test

import (
	"os"
	"testing"

	"github.com/hibiki-gg/scoretrack/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
