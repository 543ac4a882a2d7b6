package ledger

import (
	"os"
	"testing"

	"github.com/medledger/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}
