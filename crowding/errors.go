package crowding

import (
	"errors"

	"buscast/neuralnet"
)

var (
	// ErrInvalidInput reports unusable training data or query values.
	ErrInvalidInput = neuralnet.ErrInvalidInput
	// ErrModelNotTrained is returned by predictions on a service that never completed Train.
	ErrModelNotTrained = errors.New("model not trained")
)
