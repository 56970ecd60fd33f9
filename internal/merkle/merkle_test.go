package merkle

import (
	"math/big"
	"testing"

	"airdrop-backend/internal/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLeaves(n int) ([]common.Address, []*big.Int) {
	recipients := make([]common.Address, n)
	amounts := make([]*big.Int, n)
	for i := 0; i < n; i++ {
		recipients[i] = common.BigToAddress(big.NewInt(int64(i + 1)))
		amounts[i] = big.NewInt(int64((i + 1) * 1000))
	}
	return recipients, amounts
}

func TestNewTreeInputValidation(t *testing.T) {
	recipients, amounts := testLeaves(3)

	_, err := NewTree(recipients, amounts[:2])
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = NewTree(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSingleLeafRootIsLeafHash(t *testing.T) {
	recipients, amounts := testLeaves(1)
	tree, err := NewTree(recipients, amounts)
	require.NoError(t, err)
	assert.Equal(t, LeafHash(recipients[0], amounts[0]), tree.Root())

	proof, err := tree.ProofFor(recipients[0], amounts[0])
	require.NoError(t, err)
	assert.Empty(t, proof)
	assert.True(t, VerifyProof(recipients[0], amounts[0], proof, tree.Root()))
}

func TestProofsVerifyForEveryLeaf(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8, 13} {
		recipients, amounts := testLeaves(n)
		tree, err := NewTree(recipients, amounts)
		require.NoError(t, err)
		root := tree.Root()

		for i := range recipients {
			proof, err := tree.ProofFor(recipients[i], amounts[i])
			require.NoError(t, err, "n=%d leaf=%d", n, i)
			assert.True(t, VerifyProof(recipients[i], amounts[i], proof, root),
				"n=%d leaf=%d should verify", n, i)
		}
	}
}

func TestProofRejectsTamperedAmount(t *testing.T) {
	recipients, amounts := testLeaves(4)
	tree, err := NewTree(recipients, amounts)
	require.NoError(t, err)

	proof, err := tree.ProofFor(recipients[0], amounts[0])
	require.NoError(t, err)

	bumped := new(big.Int).Add(amounts[0], big.NewInt(1))
	assert.False(t, VerifyProof(recipients[0], bumped, proof, tree.Root()))
	assert.False(t, VerifyProof(recipients[1], amounts[0], proof, tree.Root()))
}

func TestProofForUnknownLeaf(t *testing.T) {
	recipients, amounts := testLeaves(4)
	tree, err := NewTree(recipients, amounts)
	require.NoError(t, err)

	_, err = tree.ProofFor(common.BigToAddress(big.NewInt(999)), big.NewInt(1))
	assert.Error(t, err)
}

func TestRootIsDeterministic(t *testing.T) {
	recipients, amounts := testLeaves(7)
	a, err := GenerateRoot(recipients, amounts)
	require.NoError(t, err)
	b, err := GenerateRoot(recipients, amounts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRootDependsOnLeafOrder(t *testing.T) {
	recipients, amounts := testLeaves(4)
	a, err := GenerateRoot(recipients, amounts)
	require.NoError(t, err)

	// Swapping within a sibling pair is invisible because pair hashing
	// sorts, so swap across pair boundaries instead.
	swappedR := []common.Address{recipients[2], recipients[1], recipients[0], recipients[3]}
	swappedA := []*big.Int{amounts[2], amounts[1], amounts[0], amounts[3]}
	b, err := GenerateRoot(swappedR, swappedA)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	siblingR := []common.Address{recipients[1], recipients[0], recipients[2], recipients[3]}
	siblingA := []*big.Int{amounts[1], amounts[0], amounts[2], amounts[3]}
	c, err := GenerateRoot(siblingR, siblingA)
	require.NoError(t, err)
	assert.Equal(t, a, c)

	proof, err := NewTreeMust(t, swappedR, swappedA).ProofFor(recipients[0], amounts[0])
	require.NoError(t, err)
	assert.True(t, VerifyProof(recipients[0], amounts[0], proof, b))
}

func NewTreeMust(t *testing.T, recipients []common.Address, amounts []*big.Int) *Tree {
	t.Helper()
	tree, err := NewTree(recipients, amounts)
	require.NoError(t, err)
	return tree
}
