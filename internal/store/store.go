// SPDX-License-Identifier: MIT

// Package store holds the persistence layers: JSON snapshots on disk,
// a Badger key-value store for blueprints and a SQLite reaction catalog.
package store

import "errors"

var (
	ErrNotFound = errors.New("store: not found")
)
