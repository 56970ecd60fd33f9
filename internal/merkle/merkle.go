// Package merkle builds the per-batch Merkle commitment the token contract
// verifies claims against. Leaves are keccak256(abi.encodePacked(address,
// uint256)) and interior pairs are sorted before hashing, matching the
// OpenZeppelin MerkleProof convention, so proofs verify order-independently.
package merkle

import (
	"bytes"
	"fmt"
	"math/big"

	"airdrop-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// LeafHash packs the recipient address (20 bytes) followed by the amount as a
// 32-byte big-endian word, then keccaks the result. The address-then-amount
// order is a compatibility contract with the on-chain verifier.
func LeafHash(recipient common.Address, amount *big.Int) common.Hash {
	data := make([]byte, 0, 20+32)
	data = append(data, recipient.Bytes()...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return crypto.Keccak256Hash(data)
}

// hashPair hashes the sorted concatenation of two nodes.
func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(b[:], a[:]) < 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(append(a[:], b[:]...))
}

// Tree is a sorted-pairs Merkle tree over (recipient, amount) leaves. Leaves
// keep their insertion order; an odd node at any level is promoted unhashed.
type Tree struct {
	levels [][]common.Hash
}

// NewTree builds the tree for equal-length recipient/amount slices.
func NewTree(recipients []common.Address, amounts []*big.Int) (*Tree, error) {
	if len(recipients) != len(amounts) {
		return nil, fmt.Errorf("merkle: %d recipients vs %d amounts: %w",
			len(recipients), len(amounts), types.ErrInvalidInput)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("merkle: empty leaf set: %w", types.ErrInvalidInput)
	}

	leaves := make([]common.Hash, len(recipients))
	for i := range recipients {
		leaves[i] = LeafHash(recipients[i], amounts[i])
	}

	levels := [][]common.Hash{leaves}
	for len(levels[len(levels)-1]) > 1 {
		cur := levels[len(levels)-1]
		next := make([]common.Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			if i+1 >= len(cur) {
				next = append(next, cur[i])
				break
			}
			next = append(next, hashPair(cur[i], cur[i+1]))
		}
		levels = append(levels, next)
	}
	return &Tree{levels: levels}, nil
}

// Root returns the tree's root commitment.
func (t *Tree) Root() common.Hash {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// ProofFor returns the sibling path for the given (recipient, amount) pair.
// The pair must be one of the tree's leaves.
func (t *Tree) ProofFor(recipient common.Address, amount *big.Int) ([]common.Hash, error) {
	leaf := LeafHash(recipient, amount)
	idx := -1
	for i, l := range t.levels[0] {
		if l == leaf {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("merkle: (%s, %s) is not a leaf of this tree",
			recipient.Hex(), amount.String())
	}

	var proof []common.Hash
	for level := 0; level < len(t.levels)-1; level++ {
		sibling := idx ^ 1
		if sibling < len(t.levels[level]) {
			proof = append(proof, t.levels[level][sibling])
		}
		idx /= 2
	}
	return proof, nil
}

// GenerateRoot is a one-shot convenience for callers that only need the root.
func GenerateRoot(recipients []common.Address, amounts []*big.Int) (common.Hash, error) {
	tree, err := NewTree(recipients, amounts)
	if err != nil {
		return common.Hash{}, err
	}
	return tree.Root(), nil
}

// VerifyProof reconstructs the leaf for (recipient, amount) and folds the
// proof into it with sorted-pair hashing. True iff the result equals root.
func VerifyProof(recipient common.Address, amount *big.Int, proof []common.Hash, root common.Hash) bool {
	node := LeafHash(recipient, amount)
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}
