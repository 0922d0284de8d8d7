package utils

import (
	"io"

	"github.com/sirupsen/logrus"
)

// PointOf returns a pointer to the value
func PointOf[T any](value T) *T {
	return &value
}

// DeferredClose closes a resource and logs the error, for use in defer statements.
func DeferredClose(log logrus.FieldLogger, closer io.Closer, errMsg string) {
	if err := closer.Close(); err != nil {
		if errMsg == "" {
			errMsg = "closing resource"
		}
		log.Errorf("%s: %v", errMsg, err)
	}
}
