package errprocess

import (
	"errors"
	"fmt"

	"social_realtime_client/pkg/logger"
)

// Set set err info
func Set(errMsg string) error {
	logger.Log.Error(errMsg)
	return errors.New(errMsg)
}

// Setf set err info with format
func Setf(format string, args ...interface{}) error {
	return Set(fmt.Sprintf(format, args...))
}
