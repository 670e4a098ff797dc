// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parlor Contributors

package notify

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when the caller's role does not permit the
// operation. Terminal: returned to the caller unmodified by the pipeline.
var ErrUnauthorized = errors.New("operation not permitted")

// ErrRateLimited is returned when the caller's request window is exhausted.
var ErrRateLimited = errors.New("rate limit exceeded")
