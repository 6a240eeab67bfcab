package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC and reads price feed contracts.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu            sync.RWMutex
	decimalsCache map[common.Address]uint8
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient:     rpcClient,
		ethClient:     ethclient.NewClient(rpcClient),
		decimalsCache: make(map[common.Address]uint8),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// FeedDecimals returns the decimals of a price feed, using an in-memory cache.
func (c *Client) FeedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	c.mu.RLock()
	decimals, ok := c.decimalsCache[feed]
	c.mu.RUnlock()
	if ok {
		return decimals, nil
	}

	values, err := callFeedMethod(ctx, c, feed, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, err = asUint8(values[0])
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.decimalsCache[feed] = decimals
	c.mu.Unlock()

	return decimals, nil
}

// LatestRound reads latestRoundData and decimals of a feed.
func (c *Client) LatestRound(ctx context.Context, feed common.Address) (Round, error) {
	decimals, err := c.FeedDecimals(ctx, feed)
	if err != nil {
		return Round{}, err
	}
	values, err := callFeedMethod(ctx, c, feed, "latestRoundData")
	if err != nil {
		return Round{}, err
	}
	round, err := decodeRound(values)
	if err != nil {
		return Round{}, err
	}
	round.Feed = feed
	round.Decimals = decimals
	return round, nil
}
