package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrFenceTimeout         = errors.New("in-flight fence wait timed out")
	ErrDeviceLost           = errors.New("device lost")
	ErrDescriptorAllocation = errors.New("descriptor set allocation failed")
	ErrWindowClosed         = errors.New("window closed while waiting for a drawable extent")
	ErrFrameNotStarted      = errors.New("frame was not started")
	ErrInvalidConfig        = errors.New("invalid configuration")
)
