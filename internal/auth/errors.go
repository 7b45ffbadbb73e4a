// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchbook Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when a uniqueness constraint is violated,
// such as registering an email that already has an account.
var ErrAlreadyExists = errors.New("already exists")
