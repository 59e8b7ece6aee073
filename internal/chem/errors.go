package chem

import "errors"

// Sentinel errors returned by the parser and catalog loader.
var (
	ErrUnknownElement      = errors.New("unknown element")
	ErrDanglingMultiplier  = errors.New("digit without a preceding element or group")
	ErrEmptyCompound       = errors.New("empty compound")
	ErrInvalidCatalogEntry = errors.New("invalid catalog entry")
)
