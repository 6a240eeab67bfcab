package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const aggregatorV3ABIJSON = `[
  {
    "inputs": [],
    "name": "decimals",
    "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "latestRoundData",
    "outputs": [
      {"internalType": "uint80", "name": "roundId", "type": "uint80"},
      {"internalType": "int256", "name": "answer", "type": "int256"},
      {"internalType": "uint256", "name": "startedAt", "type": "uint256"},
      {"internalType": "uint256", "name": "updatedAt", "type": "uint256"},
      {"internalType": "uint80", "name": "answeredInRound", "type": "uint80"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	aggregatorV3ABI     abi.ABI
	aggregatorV3ABIOnce sync.Once
	aggregatorV3ABIErr  error
)

// AggregatorV3ABI returns the parsed price feed ABI.
func AggregatorV3ABI() (abi.ABI, error) {
	aggregatorV3ABIOnce.Do(func() {
		aggregatorV3ABI, aggregatorV3ABIErr = abi.JSON(strings.NewReader(aggregatorV3ABIJSON))
	})
	return aggregatorV3ABI, aggregatorV3ABIErr
}
