// SPDX-License-Identifier: MIT

package chem

import (
	"fmt"
	"strings"
)

// ReactionParts holds the molecule SMILES of a reaction, split per side.
type ReactionParts struct {
	Reactants []string
	Agents    []string
	Products  []string
}

// SplitReaction splits a reaction string into its sides. Both the two-field
// "reactants>>products" and the three-field "reactants>agents>products"
// forms are accepted. Molecules within a side are dot-separated.
func SplitReaction(reaction string) (ReactionParts, error) {
	reaction = strings.TrimSpace(reaction)
	if reaction == "" {
		return ReactionParts{}, ErrEmptyInput
	}
	fields := strings.Split(reaction, ">")
	var parts ReactionParts
	switch len(fields) {
	case 3:
		parts.Reactants = splitMolecules(fields[0])
		parts.Agents = splitMolecules(fields[1])
		parts.Products = splitMolecules(fields[2])
	default:
		return ReactionParts{}, fmt.Errorf("%w: %q", ErrInvalidReaction, reaction)
	}
	if len(parts.Reactants) == 0 || len(parts.Products) == 0 {
		return ReactionParts{}, fmt.Errorf("%w: missing reactants or products in %q", ErrInvalidReaction, reaction)
	}
	return parts, nil
}

// JoinReaction reassembles a reaction string. Agents are included only when
// present, so two-field inputs round-trip to two-field outputs.
func JoinReaction(parts ReactionParts) string {
	r := strings.Join(parts.Reactants, ".")
	p := strings.Join(parts.Products, ".")
	if len(parts.Agents) > 0 {
		return r + ">" + strings.Join(parts.Agents, ".") + ">" + p
	}
	return r + ">>" + p
}

// CanonicalizeReaction canonicalizes every molecule of a reaction string
// independently and reassembles the string.
func CanonicalizeReaction(reaction string) (string, error) {
	parts, err := SplitReaction(reaction)
	if err != nil {
		return "", err
	}
	canon := func(in []string) ([]string, error) {
		out := make([]string, 0, len(in))
		for _, s := range in {
			c, err := CanonicalSmiles(s)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}
	if parts.Reactants, err = canon(parts.Reactants); err != nil {
		return "", err
	}
	if parts.Agents, err = canon(parts.Agents); err != nil {
		return "", err
	}
	if parts.Products, err = canon(parts.Products); err != nil {
		return "", err
	}
	return JoinReaction(parts), nil
}

// ReverseReaction swaps the sides of a reaction string, keeping the agents
// field in place. Used to derive forward templates from retro templates.
func ReverseReaction(reaction string) string {
	fields := strings.Split(reaction, ">")
	for i, j := 0, len(fields)-1; i < j; i, j = i+1, j-1 {
		fields[i], fields[j] = fields[j], fields[i]
	}
	return strings.Join(fields, ">")
}

func splitMolecules(side string) []string {
	if strings.TrimSpace(side) == "" {
		return nil
	}
	raw := strings.Split(side, ".")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
