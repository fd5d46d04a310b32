package apperrors

import "errors"

var ErrInvalidInput = errors.New("invalid input")
