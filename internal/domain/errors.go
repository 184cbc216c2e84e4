package domain

import "errors"

var ErrInvalidEventType = errors.New("invalid event type")
