package txengine

import (
	"math/big"
	"sync"

	rampcommon "github.com/rampforge/agent/common"
)

// DefaultGasWindowBlocks is the default window average_gas filters by when
// the caller doesn't supply one: roughly one day at a 12s block time,
// matching model/types/evm/gas.rs's DEFAULT_PAST_DAY_BLOCKS.
const DefaultGasWindowBlocks = (24 * 60 * 60) / 12

// GasRecord is one confirmed transaction's gas usage: how much gas it
// burned, the effective gas price it paid, and the block it landed in.
type GasRecord struct {
	Gas         uint64
	GasPrice    *big.Int
	BlockNumber uint64
}

// gasUsage is an append-only ring of GasRecords for one action bucket on one
// chain, queryable by a trailing block window.
type gasUsage struct {
	mu      sync.Mutex
	records []GasRecord
}

func (u *gasUsage) record(gas uint64, gasPrice *big.Int, blockNumber uint64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = append(u.records, GasRecord{Gas: gas, GasPrice: new(big.Int).Set(gasPrice), BlockNumber: blockNumber})
}

// average filters records to current_block - block_number <= window and
// returns the mean gas and gas price over what's left, or ok=false if
// nothing falls in that window.
func (u *gasUsage) average(currentBlock, window uint64) (avgGas uint64, avgPrice *big.Int, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	var count uint64
	totalGas := new(big.Int)
	totalPrice := new(big.Int)
	for _, r := range u.records {
		var age uint64
		if currentBlock > r.BlockNumber {
			age = currentBlock - r.BlockNumber
		}
		if age > window {
			continue
		}
		count++
		totalGas.Add(totalGas, new(big.Int).SetUint64(r.Gas))
		totalPrice.Add(totalPrice, r.GasPrice)
	}
	if count == 0 {
		return 0, nil, false
	}
	divisor := new(big.Int).SetUint64(count)
	avgGas = new(big.Int).Div(totalGas, divisor).Uint64()
	avgPrice = new(big.Int).Div(totalPrice, divisor)
	return avgGas, avgPrice, true
}

// ChainGasTracking holds one gasUsage ring per tracked action bucket for a
// single chain, mirroring ChainGasTracking in model/types/evm/gas.rs.
// ActionTransfer has no bucket, matching the original's TransactionAction
// enum, which never includes a Transfer variant.
type ChainGasTracking struct {
	CommitGas        *gasUsage
	UncommitGas      *gasUsage
	CancelNativeGas  *gasUsage
	CancelTokenGas   *gasUsage
	ReleaseNativeGas *gasUsage
	ReleaseTokenGas  *gasUsage
}

func newChainGasTracking() *ChainGasTracking {
	return &ChainGasTracking{
		CommitGas:        &gasUsage{},
		UncommitGas:      &gasUsage{},
		CancelNativeGas:  &gasUsage{},
		CancelTokenGas:   &gasUsage{},
		ReleaseNativeGas: &gasUsage{},
		ReleaseTokenGas:  &gasUsage{},
	}
}

func (c *ChainGasTracking) bucket(action Action) *gasUsage {
	switch action.Kind {
	case ActionCommit:
		return c.CommitGas
	case ActionUncommit:
		return c.UncommitGas
	case ActionCancel:
		if action.Variant == Native {
			return c.CancelNativeGas
		}
		return c.CancelTokenGas
	case ActionRelease:
		if action.Variant == Native {
			return c.ReleaseNativeGas
		}
		return c.ReleaseTokenGas
	default:
		return nil
	}
}

// GasTracker is the per-chain table of ChainGasTracking rings: the Go
// analogue of ChainState.gas_tracking, addressed by chain id instead of
// living inside a single global heap-state struct.
type GasTracker struct {
	mu     sync.Mutex
	chains map[uint64]*ChainGasTracking
}

func NewGasTracker() *GasTracker {
	return &GasTracker{chains: make(map[uint64]*ChainGasTracking)}
}

func (t *GasTracker) chainFor(chainID uint64) *ChainGasTracking {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.chains[chainID]
	if !ok {
		c = newChainGasTracking()
		t.chains[chainID] = c
	}
	return c
}

// RecordGasUsage appends a GasRecord for chainID/action, creating the
// chain's tracking table on first use. Untracked actions (Transfer) are
// silently ignored, matching register_gas_usage's `_ => ()` catch-all.
func (t *GasTracker) RecordGasUsage(chainID uint64, gas uint64, gasPrice *big.Int, blockNumber uint64, action Action) {
	usage := t.chainFor(chainID).bucket(action)
	if usage == nil {
		return
	}
	usage.record(gas, gasPrice, blockNumber)
}

// AverageGas returns the mean gas and gas price of action's records on
// chainID within window blocks of currentBlock, or ok=false if none qualify.
// Returns GasLogError for an action with no tracked bucket (Transfer),
// matching get_average_gas's `_ => Err(GasLogError(...))`.
func (t *GasTracker) AverageGas(chainID, currentBlock, window uint64, action Action) (avgGas uint64, avgPrice *big.Int, ok bool, err error) {
	usage := t.chainFor(chainID).bucket(action)
	if usage == nil {
		return 0, nil, false, rampcommon.NewGasLogError("action is not being logged: " + action.String())
	}
	avgGas, avgPrice, ok = usage.average(currentBlock, window)
	return avgGas, avgPrice, ok, nil
}
