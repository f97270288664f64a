package risk

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is returned when an estimator is constructed with invalid parameters.
	ErrConfiguration = errors.New("invalid risk estimator configuration")

	// ErrInvalidInput is returned when scores and labels can not be paired.
	ErrInvalidInput = errors.New("invalid risk estimator input")
)
