package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrProviderNotFound = errors.New("provider not found")
	ErrModelNotFound    = errors.New("model not found")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrTerminalStatus   = errors.New("generation already in terminal status")
)
