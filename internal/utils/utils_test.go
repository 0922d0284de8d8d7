package utils

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestPointOf(t *testing.T) {
	v := PointOf("hello")
	assert.Equal(t, "hello", *v)

	n := PointOf(7)
	assert.Equal(t, 7, *n)
}

type errCloser struct{ err error }

func (e errCloser) Close() error { return e.err }

func TestDeferredClose(t *testing.T) {
	log := logrus.New()

	// should not panic either way
	DeferredClose(log, errCloser{nil}, "")
	DeferredClose(log, errCloser{errors.New("boom")}, "closing thing")
}
