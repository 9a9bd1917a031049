// SPDX-License-Identifier: MIT

package chem

import "errors"

var (
	// ErrInvalidSmiles reports a SMILES string that cannot be parsed.
	ErrInvalidSmiles = errors.New("chem: invalid SMILES string")
	// ErrInvalidReaction reports a malformed reaction string.
	ErrInvalidReaction = errors.New("chem: invalid reaction string")
	// ErrEmptyInput reports empty or whitespace-only input.
	ErrEmptyInput = errors.New("chem: empty input")
)
