package notify

import (
	"context"

	"go.uber.org/zap"
)

// Dev logs codes instead of delivering them. Development only: the plaintext
// code ends up in the process log.
type Dev struct {
	logger *zap.Logger
}

func NewDev(logger *zap.Logger) *Dev {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dev{logger: logger}
}

func (d *Dev) SendCode(_ context.Context, email, _, code string) error {
	d.logger.Info("one-time code issued",
		zap.String("email", email),
		zap.String("code", code))
	return nil
}
