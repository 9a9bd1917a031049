// SPDX-License-Identifier: MIT

package chem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMolFromSmiles_Valid(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		atoms int
		bonds int
	}{
		{"ethanol", "CCO", 3, 2},
		{"acetic acid", "CC(=O)O", 4, 3},
		{"benzene", "c1ccccc1", 6, 6},
		{"cyclopropane", "C1CC1", 3, 3},
		{"ammonium", "[NH4+]", 1, 0},
		{"mapped methyl", "[CH3:1][OH:2]", 2, 1},
		{"disconnected", "CCO.O", 4, 2},
		{"chloroethane", "CCCl", 3, 2},
		{"toluene", "Cc1ccccc1", 7, 7},
		{"pyrrole", "c1cc[nH]c1", 5, 5},
		{"two digit ring", "C%10CC%10", 3, 3},
		{"isotope", "[13CH4]", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mol, err := MolFromSmiles(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.atoms, mol.NumAtoms())
			assert.Equal(t, tt.bonds, len(mol.Bonds))
		})
	}
}

func TestMolFromSmiles_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"open branch", "C(C"},
		{"close without open", "CC)"},
		{"unclosed ring", "C1CC"},
		{"dangling bond", "CC="},
		{"bad character", "CxC"},
		{"unterminated bracket", "[CH3"},
		{"bond before dot", "C=.C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MolFromSmiles(tt.in)
			require.Error(t, err)
		})
	}
}

func TestMolFromSmiles_BracketProperties(t *testing.T) {
	mol, err := MolFromSmiles("[13C@H3+:7]")
	require.NoError(t, err)
	require.Equal(t, 1, mol.NumAtoms())
	a := mol.Atoms[0]
	assert.Equal(t, "C", a.Symbol)
	assert.Equal(t, 13, a.Isotope)
	assert.Equal(t, "@", a.Chiral)
	assert.Equal(t, 3, a.HCount)
	assert.Equal(t, 1, a.Charge)
	assert.Equal(t, 7, a.AtomMap)
}

func TestMolFromSmiles_Charges(t *testing.T) {
	tests := []struct {
		in     string
		charge int
	}{
		{"[O-]", -1},
		{"[NH4+]", 1},
		{"[Ca+2]", 2},
		{"[Fe+3]", 3},
		{"[O--]", -2},
	}
	for _, tt := range tests {
		mol, err := MolFromSmiles(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.charge, mol.Atoms[0].Charge, tt.in)
	}
}

func TestTotalHydrogens(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		atom   int
		expect int
	}{
		{"methane carbon", "C", 0, 4},
		{"ethanol middle carbon", "CCO", 1, 2},
		{"ethanol oxygen", "CCO", 2, 1},
		{"carbonyl carbon", "C=O", 0, 2},
		{"benzene carbon", "c1ccccc1", 0, 1},
		{"pyridine nitrogen", "c1ccncc1", 3, 0},
		{"ammonium", "[NH4+]", 0, 4},
		{"nitrile carbon", "C#N", 0, 1},
		{"chlorine", "CCl", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mol, err := MolFromSmiles(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, mol.TotalHydrogens(tt.atom))
		})
	}
}

func TestMolNeighbors(t *testing.T) {
	mol, err := MolFromSmiles("CC(=O)O")
	require.NoError(t, err)
	// carboxyl carbon is atom 1
	nbs := mol.Neighbors(1)
	assert.Len(t, nbs, 3)
	assert.NotNil(t, mol.BondBetween(1, 2))
	assert.Equal(t, 2, mol.BondBetween(1, 2).Order)
	assert.Nil(t, mol.BondBetween(0, 3))
}
