package domain

import "errors"

var (
	ErrCourseNotFound         = errors.New("course not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrInvalidID              = errors.New("invalid id")
)
