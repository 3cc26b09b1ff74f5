package transform

import "errors"

var (
	ErrMissingColumn = errors.New("transform: missing column")
	ErrGeometryFile  = errors.New("transform: geometry file")
	ErrEmptyGeometry = errors.New("transform: empty geometry")
	// ErrEmptyResult marks a geometry filter that matched nothing and was
	// therefore not applied.
	ErrEmptyResult = errors.New("transform: filter left no rows")
	ErrNotDataset  = errors.New("transform: not a dataset")
	ErrExport      = errors.New("transform: export failed")
)
