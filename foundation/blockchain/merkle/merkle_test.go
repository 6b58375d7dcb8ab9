// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.

package merkle_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/ardanlabs/ledgernode/foundation/blockchain/merkle"
)

// Data carries a transaction hash like value for the tree.
type Data struct {
	x string
}

// Hash returns the identity of the value.
func (d Data) Hash() string {
	return d.x
}

// Equals tests for equality of two piece of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

// =============================================================================

func h(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

var table = []struct {
	name         string
	data         []Data
	expectedRoot string
}{
	{
		name:         "single",
		data:         []Data{{x: "a"}},
		expectedRoot: h(h("a") + h("a")),
	},
	{
		name:         "pair",
		data:         []Data{{x: "a"}, {x: "b"}},
		expectedRoot: h(h("a") + h("b")),
	},
	{
		name:         "three",
		data:         []Data{{x: "a"}, {x: "b"}, {x: "c"}},
		expectedRoot: h(h(h("a")+h("b")) + h(h("c")+h("c"))),
	},
	{
		name: "five",
		data: []Data{{x: "a"}, {x: "b"}, {x: "c"}, {x: "d"}, {x: "e"}},
		expectedRoot: func() string {
			ab := h(h("a") + h("b"))
			cd := h(h("c") + h("d"))
			ee := h(h("e") + h("e"))
			abcd := h(ab + cd)
			eeee := h(ee + ee)
			return h(abcd + eeee)
		}(),
	},
}

// =============================================================================

func Test_MerkleRoot(t *testing.T) {
	for _, tst := range table {
		f := func(t *testing.T) {
			tree, err := merkle.NewTree(tst.data)
			if err != nil {
				t.Fatalf("Should be able to create the tree: %s", err)
			}

			if tree.RootHex() != tst.expectedRoot {
				t.Logf("got: %s", tree.RootHex())
				t.Logf("exp: %s", tst.expectedRoot)
				t.Fatalf("Should get back the expected merkle root.")
			}

			if err := tree.Verify(); err != nil {
				t.Fatalf("Should be able to verify the tree: %s", err)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Deterministic(t *testing.T) {
	data := []Data{{x: "a"}, {x: "b"}, {x: "c"}}

	t1, err := merkle.NewTree(data)
	if err != nil {
		t.Fatalf("Should be able to create the tree: %s", err)
	}

	t2, err := merkle.NewTree(data)
	if err != nil {
		t.Fatalf("Should be able to create the tree: %s", err)
	}

	if t1.RootHex() != t2.RootHex() {
		t.Fatalf("Should get the same root for the same values.")
	}

	swapped, err := merkle.NewTree([]Data{{x: "b"}, {x: "a"}, {x: "c"}})
	if err != nil {
		t.Fatalf("Should be able to create the tree: %s", err)
	}

	if swapped.RootHex() == t1.RootHex() {
		t.Fatalf("Should get a different root when the order changes.")
	}
}

func Test_Empty(t *testing.T) {
	if _, err := merkle.NewTree([]Data{}); err == nil {
		t.Fatalf("Should not be able to create an empty tree.")
	}
}

func Test_Values(t *testing.T) {
	for _, tst := range table {
		f := func(t *testing.T) {
			tree, err := merkle.NewTree(tst.data)
			if err != nil {
				t.Fatalf("Should be able to create the tree: %s", err)
			}

			values := tree.Values()
			if len(values) != len(tst.data) {
				t.Fatalf("Should get back %d values, got %d.", len(tst.data), len(values))
			}

			for i := range values {
				if !values[i].Equals(tst.data[i]) {
					t.Fatalf("Should get back value %d in order.", i)
				}
			}

			if err := tree.Rebuild(); err != nil {
				t.Fatalf("Should be able to rebuild the tree: %s", err)
			}

			if tree.RootHex() != tst.expectedRoot {
				t.Fatalf("Should get back the same root after a rebuild.")
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Verify(t *testing.T) {
	tree, err := merkle.NewTree(table[3].data)
	if err != nil {
		t.Fatalf("Should be able to create the tree: %s", err)
	}

	tree.MerkleRoot = h("tampered")
	if err := tree.Verify(); err == nil {
		t.Fatalf("Should not verify a tree with a tampered root.")
	}
}

func Test_Proof(t *testing.T) {
	for _, tst := range table {
		f := func(t *testing.T) {
			tree, err := merkle.NewTree(tst.data)
			if err != nil {
				t.Fatalf("Should be able to create the tree: %s", err)
			}

			for _, d := range tst.data {
				proof, order, err := tree.Proof(d)
				if err != nil {
					t.Fatalf("Should be able to get a proof for %s: %s", d.x, err)
				}

				if !merkle.VerifyProof(d.x, proof, order, tree.RootHex()) {
					t.Fatalf("Should be able to verify the proof for %s.", d.x)
				}

				if merkle.VerifyProof("other", proof, order, tree.RootHex()) {
					t.Fatalf("Should not verify the proof for a different value.")
				}
			}

			if _, _, err := tree.Proof(Data{x: "NotInTestTable"}); err == nil {
				t.Fatalf("Should not get a proof for a missing value.")
			}
		}

		t.Run(tst.name, f)
	}
}
