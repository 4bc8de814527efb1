package models

import "errors"

// Sentinel errors shared across packages
var (
	ErrNotFound        = errors.New("record not found")
	ErrInvalidBetType  = errors.New("invalid bet type")
	ErrMissingRaceDate = errors.New("race date is missing")
)
