package pipeline

import "errors"

// Errors that stop a run. Transform anomalies never surface here.
var (
	ErrUnknownTransform = errors.New("pipeline: unknown transform")
	ErrMissingDataset   = errors.New("pipeline: no dataset available")
	ErrInvalidArgs      = errors.New("pipeline: invalid step arguments")
)
