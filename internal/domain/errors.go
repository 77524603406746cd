package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrInvalidOwnerID     = errors.New("invalid owner id")
	ErrInvalidTitle       = errors.New("invalid title")
	ErrTitleTooLong       = errors.New("title too long")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidOrder       = errors.New("invalid order")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrDuplicateTask      = errors.New("duplicate task in list")
)
