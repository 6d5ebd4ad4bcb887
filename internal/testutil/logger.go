package testutil

import (
	"io"

	"github.com/marisec-auth/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, 0)
}
