// SPDX-License-Identifier: MIT

package chem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashString returns the hex SHA-256 digest of the input. Reaction and
// molecule UIDs are derived this way from canonical SMILES, so equal
// structures get equal identifiers.
func HashString(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("%w: cannot hash empty string", ErrEmptyInput)
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:]), nil
}
