package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// Round is one answer of a price feed.
type Round struct {
	Feed      common.Address
	RoundID   *big.Int
	Answer    *big.Int
	Decimals  uint8
	UpdatedAt uint64
}

func callFeedMethod(ctx context.Context, c *Client, feed common.Address, method string) ([]interface{}, error) {
	feedABI, err := AggregatorV3ABI()
	if err != nil {
		return nil, fmt.Errorf("parse feed abi: %w", err)
	}
	data, err := feedABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &feed, Data: data}
	resp, err := c.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := feedABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func decodeRound(values []interface{}) (Round, error) {
	if len(values) < 4 {
		return Round{}, fmt.Errorf("latestRoundData returned %d values", len(values))
	}
	roundID, err := asBigInt(values[0])
	if err != nil {
		return Round{}, fmt.Errorf("round id: %w", err)
	}
	answer, err := asBigInt(values[1])
	if err != nil {
		return Round{}, fmt.Errorf("answer: %w", err)
	}
	updatedAt, err := asBigInt(values[3])
	if err != nil {
		return Round{}, fmt.Errorf("updated at: %w", err)
	}
	if !updatedAt.IsUint64() {
		return Round{}, fmt.Errorf("updated at overflow: %s", updatedAt.String())
	}
	return Round{
		RoundID:   roundID,
		Answer:    answer,
		UpdatedAt: updatedAt.Uint64(),
	}, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("uint8 overflow: %s", v.String())
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
