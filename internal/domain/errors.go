package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidImage      = errors.New("invalid image")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrImageTooLarge     = errors.New("image too large")
	ErrUnknownImage      = errors.New("unknown image")
	ErrUnknownEffect     = errors.New("unknown effect")
	ErrJobNotFound       = errors.New("job not found")
)
