// Package feeestimator computes EIP-1559 fee suggestions for a chain, ahead
// of every transaction the agent broadcasts.
package feeestimator

import (
	"context"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/rpcgateway"
)

// DefaultBlockCount is how many trailing blocks fee_history samples when no
// override is given.
const DefaultBlockCount = 9

// minSuggestedPriorityFee floors the tip even when recent blocks were empty
// (e.g. a local testnet), matching MIN_SUGGEST_MAX_PRIORITY_FEE_PER_GAS.
var minSuggestedPriorityFee = big.NewInt(1_500_000_000)

// feeOverrideChains hard-codes suggestions for chains whose fee markets
// don't follow the standard EIP-1559 base-fee dynamics (Mantle mainnet and
// testnet, which derive gas price from an L1 oracle contract instead).
var feeOverrideChains = map[uint64]Estimates{
	5000: {MaxFeePerGas: big.NewInt(20_000_000), MaxPriorityFeePerGas: big.NewInt(0)},
	5003: {MaxFeePerGas: big.NewInt(20_000_000), MaxPriorityFeePerGas: big.NewInt(0)},
}

// Estimates is the fee pair a caller should use for its next transaction.
type Estimates struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// RPC is the subset of rpcgateway.Gateway the estimator depends on.
type RPC interface {
	FeeHistory(ctx context.Context, blockCount int, newestBlock string, rewardPercentiles []int) (rpcgateway.Result[rpcgateway.FeeHistory], error)
}

// Estimator computes fee suggestions, per spec §4.6.
type Estimator struct {
	rpc RPC
	log log.Logger
}

func New(rpc RPC) *Estimator {
	return &Estimator{rpc: rpc, log: log.New("component", "feeestimator")}
}

// Estimate returns the suggested fees for chainID, sampling blockCount
// trailing blocks (DefaultBlockCount if zero).
func (e *Estimator) Estimate(ctx context.Context, chainID uint64, blockCount int) (Estimates, error) {
	if override, ok := feeOverrideChains[chainID]; ok {
		return override, nil
	}
	if blockCount == 0 {
		blockCount = DefaultBlockCount
	}

	res, err := e.rpc.FeeHistory(ctx, blockCount, "latest", []int{95})
	if err != nil {
		return Estimates{}, err
	}
	if !res.Consistent {
		return Estimates{}, common.NewBlockchainError(common.ErrInconsistentStatus)
	}
	history := res.Value

	if len(history.BaseFeePerGas) == 0 {
		return Estimates{}, common.NewSystemError(common.ErrInternalError, "baseFeePerGas is empty")
	}
	baseFee := bigFromHexutil(history.BaseFeePerGas[len(history.BaseFeePerGas)-1])

	var rewards []*big.Int
	for _, row := range history.Reward {
		for _, r := range row {
			rewards = append(rewards, bigFromHexutil(r))
		}
	}
	sort.Slice(rewards, func(i, j int) bool { return rewards[i].Cmp(rewards[j]) < 0 })

	median := big.NewInt(0)
	if len(rewards) > 0 {
		median = rewards[(len(rewards)-1)/2]
	}

	tip := median
	if tip.Cmp(minSuggestedPriorityFee) < 0 {
		tip = minSuggestedPriorityFee
	}

	maxFee := new(big.Int).Add(baseFee, tip)
	if maxFee.Cmp(baseFee) < 0 {
		maxFee = baseFee
	}
	maxFee = maxFee.Mul(maxFee, big.NewInt(105))
	maxFee = maxFee.Div(maxFee, big.NewInt(100))

	e.log.Debug("fee estimate computed", "chain", chainID, "base", baseFee, "tip", tip, "max", maxFee)

	return Estimates{MaxFeePerGas: maxFee, MaxPriorityFeePerGas: tip}, nil
}

func bigFromHexutil(h hexutil.Big) *big.Int {
	v := big.Int(h)
	return &v
}
