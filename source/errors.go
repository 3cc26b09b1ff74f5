package source

import "errors"

var (
	ErrInvalidSource     = errors.New("source: invalid url")
	ErrDownload          = errors.New("source: download failed")
	ErrUnsupportedFormat = errors.New("source: unsupported format")
	ErrParse             = errors.New("source: parse failed")
)
