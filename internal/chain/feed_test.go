package chain

import (
	"math/big"
	"testing"
)

func TestDecodeLatestRound(t *testing.T) {
	feedABI, err := AggregatorV3ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	answer := big.NewInt(12_345_678)
	data, err := feedABI.Methods["latestRoundData"].Outputs.Pack(
		big.NewInt(42),
		answer,
		big.NewInt(1_700_000_000),
		big.NewInt(1_700_000_100),
		big.NewInt(42),
	)
	if err != nil {
		t.Fatalf("pack round: %v", err)
	}

	values, err := feedABI.Unpack("latestRoundData", data)
	if err != nil {
		t.Fatalf("unpack round: %v", err)
	}
	round, err := decodeRound(values)
	if err != nil {
		t.Fatalf("decode round: %v", err)
	}
	if round.RoundID.Int64() != 42 || round.Answer.Cmp(answer) != 0 || round.UpdatedAt != 1_700_000_100 {
		t.Fatalf("round mismatch: %+v", round)
	}
}

func TestDecodeDecimals(t *testing.T) {
	feedABI, err := AggregatorV3ABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	data, err := feedABI.Methods["decimals"].Outputs.Pack(uint8(8))
	if err != nil {
		t.Fatalf("pack decimals: %v", err)
	}
	values, err := feedABI.Unpack("decimals", data)
	if err != nil {
		t.Fatalf("unpack decimals: %v", err)
	}
	decimals, err := asUint8(values[0])
	if err != nil || decimals != 8 {
		t.Fatalf("decimals mismatch: %d %v", decimals, err)
	}

	if _, err := decodeRound(values); err == nil {
		t.Fatalf("expected short round error")
	}
}
