package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"
)

// GasPriceClient queries public gas tracker APIs. It backs the monitoring
// service's cross-check of the node's suggested price and acts as the
// fallback oracle when the RPC endpoint cannot answer.
type GasPriceClient struct {
	httpClient *http.Client
	chainID    int
}

// NewGasPriceClient creates a gas tracker client for the given chain.
func NewGasPriceClient(chainID int) *GasPriceClient {
	return &GasPriceClient{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		chainID: chainID,
	}
}

// gasTrackerResponse Etherscan-style gas oracle response
type gasTrackerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		SafeGasPrice    string `json:"SafeGasPrice"`
		ProposeGasPrice string `json:"ProposeGasPrice"`
		FastGasPrice    string `json:"FastGasPrice"`
	} `json:"result"`
}

// trackerURL returns the gas tracker endpoint for the client's chain, or ""
// when no public tracker exists.
func (c *GasPriceClient) trackerURL() string {
	switch c.chainID {
	case 1:
		return "https://api.etherscan.io/api?module=gastracker&action=gasoracle"
	case 56:
		return "https://api.bscscan.com/api?module=gastracker&action=gasoracle"
	case 137:
		return "https://api.polygonscan.com/api?module=gastracker&action=gasoracle"
	case 8453:
		return "https://api.basescan.org/api?module=gastracker&action=gasoracle"
	default:
		return ""
	}
}

// fallbackGwei is used when the tracker is unreachable or unsupported.
func (c *GasPriceClient) fallbackGwei() *big.Int {
	switch c.chainID {
	case 1:
		return big.NewInt(30)
	case 56:
		return big.NewInt(5)
	case 137:
		return big.NewInt(50)
	default:
		return big.NewInt(1)
	}
}

// GasPrice satisfies GasOracle. The tracker reports gwei; the returned value
// is wei. Tracker failures degrade to the chain's fallback price instead of
// erroring, matching how the submission gate wants a usable number.
func (c *GasPriceClient) GasPrice(ctx context.Context) (*big.Int, error) {
	gwei, err := c.GasPriceGwei(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Mul(gwei, big.NewInt(1e9)), nil
}

// GasPriceGwei returns the proposed (standard) gas price in whole gwei.
func (c *GasPriceClient) GasPriceGwei(ctx context.Context) (*big.Int, error) {
	url := c.trackerURL()
	if url == "" {
		return c.fallbackGwei(), nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fallbackGwei(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.fallbackGwei(), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fallbackGwei(), nil
	}

	var gasResp gasTrackerResponse
	if err := json.Unmarshal(body, &gasResp); err != nil {
		return c.fallbackGwei(), nil
	}

	if gasResp.Status != "1" {
		return c.fallbackGwei(), nil
	}

	proposed, err := strconv.ParseFloat(gasResp.Result.ProposeGasPrice, 64)
	if err != nil || proposed <= 0 {
		return c.fallbackGwei(), nil
	}

	// Round up so the gate never underestimates.
	return big.NewInt(int64(proposed + 0.5)), nil
}
