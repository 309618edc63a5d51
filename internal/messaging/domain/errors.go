package domain

import "errors"

// ErrNotFound row does not exist in the tenant
var ErrNotFound = errors.New("not found")
