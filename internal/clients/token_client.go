package clients

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"airdrop-backend/internal/config"
	domain "airdrop-backend/internal/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// moreTokenABI covers the two contract entry points the backend uses.
const moreTokenABI = `[
	{
		"inputs": [
			{"name": "recipients", "type": "address[]"},
			{"name": "amounts", "type": "uint256[]"},
			{"name": "merkleRoot", "type": "bytes32"},
			{"name": "expiryTime", "type": "uint256"}
		],
		"name": "airdropTokens",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "user", "type": "address"}],
		"name": "airdropStatus",
		"outputs": [
			{"name": "claimed", "type": "bool"},
			{"name": "amount", "type": "uint256"},
			{"name": "expiryTime", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// BatchReceipt is the confirmed result of one batch transaction.
type BatchReceipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	GasPriceWei *big.Int
}

// TokenContract is the surface the distribution pipeline needs from the MORE
// token contract.
type TokenContract interface {
	AirdropBatch(ctx context.Context, batch *domain.AirdropBatch, gasPrice *big.Int) (*BatchReceipt, error)
	AirdropStatus(ctx context.Context, user common.Address) (*domain.ClaimStatus, error)
	SignerAddress() common.Address
	SignerBalance(ctx context.Context) (*big.Int, error)
}

// GasOracle reports the network gas price used for the submission gate.
type GasOracle interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// SigningStrategy abstracts how the raw transaction hash gets signed.
type SigningStrategy interface {
	Sign(txHash []byte) ([]byte, error)
	Name() string
}

// PrivateKeySigningStrategy signs locally with a hot key.
type PrivateKeySigningStrategy struct {
	key *ecdsa.PrivateKey
}

func NewPrivateKeySigningStrategy(hexKey string) (*PrivateKeySigningStrategy, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &PrivateKeySigningStrategy{key: key}, nil
}

func (s *PrivateKeySigningStrategy) Sign(txHash []byte) ([]byte, error) {
	return crypto.Sign(txHash, s.key)
}

func (s *PrivateKeySigningStrategy) Name() string {
	return "private-key"
}

func (s *PrivateKeySigningStrategy) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// TokenClient talks to the MORE token contract over JSON-RPC.
type TokenClient struct {
	client   *ethclient.Client
	contract common.Address
	chainID  *big.Int
	network  *config.NetworkConfig
	strategy SigningStrategy
	from     common.Address
	abi      abi.ABI
}

// NewTokenClient dials the first reachable RPC endpoint of the network and
// prepares the signing strategy.
func NewTokenClient(network *config.NetworkConfig) (*TokenClient, error) {
	if network.TokenContract == "" {
		return nil, fmt.Errorf("network %s has no token contract configured", network.Name)
	}
	if !common.IsHexAddress(network.TokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %s", network.TokenContract)
	}

	var client *ethclient.Client
	var lastErr error
	for _, endpoint := range network.RPCEndpoints {
		c, err := ethclient.Dial(endpoint)
		if err != nil {
			lastErr = err
			log.Printf("⚠️ [TokenClient] Failed to dial %s: %v", endpoint, err)
			continue
		}
		client = c
		log.Printf("✅ [TokenClient] Connected to %s (chainId=%d)", endpoint, network.ChainID)
		break
	}
	if client == nil {
		return nil, fmt.Errorf("failed to connect to any RPC endpoint for %s: %w", network.Name, lastErr)
	}

	strategy, err := NewPrivateKeySigningStrategy(network.PrivateKey)
	if err != nil {
		client.Close()
		return nil, err
	}

	parsedABI, err := abi.JSON(strings.NewReader(moreTokenABI))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to parse token ABI: %w", err)
	}

	return &TokenClient{
		client:   client,
		contract: common.HexToAddress(network.TokenContract),
		chainID:  big.NewInt(int64(network.ChainID)),
		network:  network,
		strategy: strategy,
		from:     strategy.Address(),
		abi:      parsedABI,
	}, nil
}

func (tc *TokenClient) SignerAddress() common.Address {
	return tc.from
}

// SignerBalance returns the native balance of the signing address.
func (tc *TokenClient) SignerBalance(ctx context.Context) (*big.Int, error) {
	balance, err := tc.client.BalanceAt(ctx, tc.from, nil)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to query signer balance: %w", err))
	}
	return balance, nil
}

// GasPrice satisfies GasOracle with the node's suggested price.
func (tc *TokenClient) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := tc.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to query gas price: %w", err))
	}
	return price, nil
}

// AirdropBatch signs and submits an airdropTokens transaction for the batch
// and waits for confirmation. The caller has already gated the gas price.
func (tc *TokenClient) AirdropBatch(ctx context.Context, batch *domain.AirdropBatch, gasPrice *big.Int) (*BatchReceipt, error) {
	if len(batch.Recipients) == 0 || len(batch.Recipients) != len(batch.Amounts) {
		return nil, fmt.Errorf("batch %s has malformed payload: %w", batch.ID, domain.ErrInvalidInput)
	}

	txData, err := tc.abi.Pack("airdropTokens",
		batch.Recipients,
		batch.Amounts,
		[32]byte(batch.MerkleRoot),
		big.NewInt(batch.ExpiryTime.Unix()),
	)
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("failed to build call data: %w", err))
	}

	nonce, err := tc.client.PendingNonceAt(ctx, tc.from)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to get nonce: %w", err))
	}

	gasLimit := tc.network.GasLimitBase + uint64(len(batch.Recipients))*tc.network.GasPerRecipient

	legacyTx := &types.LegacyTx{
		Nonce:    nonce,
		To:       &tc.contract,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     txData,
	}
	tx := types.NewTx(legacyTx)

	log.Printf("🔧 [TokenClient] Built airdropTokens transaction:")
	log.Printf("   Batch: %s (%d recipients)", batch.ID, len(batch.Recipients))
	log.Printf("   Nonce: %d, GasLimit: %d, GasPrice: %s wei", nonce, gasLimit, gasPrice.String())
	log.Printf("   MerkleRoot: %s", batch.MerkleRoot.Hex())

	signer := types.NewEIP155Signer(tc.chainID)
	signature, err := tc.strategy.Sign(signer.Hash(tx).Bytes())
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("failed to sign transaction (%s): %w", tc.strategy.Name(), err))
	}
	signedTx, err := tx.WithSignature(signer, signature)
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("failed to apply signature: %w", err))
	}

	if err := tc.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to send transaction: %w", err))
	}
	log.Printf("📤 [TokenClient] Transaction sent: %s", signedTx.Hash().Hex())

	maxDuration := time.Duration(tc.network.ConfirmTimeout) * time.Second
	receipt, err := tc.waitForTransactionWithRetry(ctx, signedTx, maxDuration)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to confirm transaction %s: %w", signedTx.Hash().Hex(), err))
	}

	if receipt.Status == 0 {
		return nil, domain.Permanent(fmt.Errorf("transaction %s reverted in block %d", signedTx.Hash().Hex(), receipt.BlockNumber.Uint64()))
	}

	log.Printf("✅ [TokenClient] Batch %s confirmed: tx=%s block=%d gasUsed=%d",
		batch.ID, signedTx.Hash().Hex(), receipt.BlockNumber.Uint64(), receipt.GasUsed)

	return &BatchReceipt{
		TxHash:      signedTx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		GasPriceWei: gasPrice,
	}, nil
}

// waitForTransactionWithRetry waits with bind.WaitMined for 30 seconds, then
// falls back to polling the receipt every 10 seconds until maxDuration.
func (tc *TokenClient) waitForTransactionWithRetry(ctx context.Context, tx *types.Transaction, maxDuration time.Duration) (*types.Receipt, error) {
	txHash := tx.Hash()
	startTime := time.Now()
	maxEndTime := startTime.Add(maxDuration)

	ctx1, cancel1 := context.WithTimeout(ctx, 30*time.Second)
	receipt, err := bind.WaitMined(ctx1, tc.client, tx)
	cancel1()

	if err == nil && receipt != nil {
		log.Printf("✅ [TokenClient] Transaction confirmed within 30 seconds: %s", txHash.Hex())
		return receipt, nil
	}
	log.Printf("⏳ [TokenClient] WaitMined timed out, polling every 10 seconds: %s", txHash.Hex())

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	pollCount := 0
	for time.Now().Before(maxEndTime) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			pollCount++

			ctx2, cancel2 := context.WithTimeout(ctx, 15*time.Second)
			receipt, err := tc.client.TransactionReceipt(ctx2, txHash)
			cancel2()

			if err == nil && receipt != nil {
				log.Printf("✅ [TokenClient] Transaction confirmed via polling (poll #%d): %s", pollCount, txHash.Hex())
				return receipt, nil
			}
			if err != nil && err != ethereum.NotFound {
				log.Printf("⚠️ [TokenClient] Error querying receipt: %v", err)
			}
		}
	}

	return nil, fmt.Errorf("transaction confirmation timeout after %v (%d polls)", time.Since(startTime), pollCount)
}

// AirdropStatus reads a user's claim record from the contract.
func (tc *TokenClient) AirdropStatus(ctx context.Context, user common.Address) (*domain.ClaimStatus, error) {
	callData, err := tc.abi.Pack("airdropStatus", user)
	if err != nil {
		return nil, domain.Permanent(fmt.Errorf("failed to build call data: %w", err))
	}

	result, err := tc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &tc.contract,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("failed to call airdropStatus: %w", err))
	}

	values, err := tc.abi.Unpack("airdropStatus", result)
	if err != nil || len(values) != 3 {
		return nil, domain.Permanent(fmt.Errorf("failed to decode airdropStatus result: %w", err))
	}

	claimed, ok1 := values[0].(bool)
	amount, ok2 := values[1].(*big.Int)
	expiry, ok3 := values[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return nil, domain.Permanent(fmt.Errorf("unexpected airdropStatus result types"))
	}

	return &domain.ClaimStatus{
		Claimed:    claimed,
		Amount:     amount,
		ExpiryTime: time.Unix(expiry.Int64(), 0).UTC(),
	}, nil
}

// Close releases the underlying RPC connection.
func (tc *TokenClient) Close() {
	tc.client.Close()
}
