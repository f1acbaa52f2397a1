package rpcgateway

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rampforge/agent/common"
)

// FeeHistory mirrors the eth_feeHistory JSON-RPC result shape the fee
// estimator consumes.
type FeeHistory struct {
	OldestBlock   hexutil.Uint64   `json:"oldestBlock"`
	BaseFeePerGas []hexutil.Big    `json:"baseFeePerGas"`
	GasUsedRatio  []float64        `json:"gasUsedRatio"`
	Reward        [][]hexutil.Big `json:"reward"`
}

type feeHistoryKey struct {
	oldest string
	base   string
	reward string
}

func (f FeeHistory) voteKey() feeHistoryKey {
	baseStrs := make([]string, len(f.BaseFeePerGas))
	for i := range f.BaseFeePerGas {
		baseStrs[i] = f.BaseFeePerGas[i].String()
	}
	rewardStrs := make([]string, len(f.Reward))
	for i, row := range f.Reward {
		rowStrs := make([]string, len(row))
		for j := range row {
			rowStrs[j] = row[j].String()
		}
		rewardStrs[i] = strings.Join(rowStrs, ",")
	}
	return feeHistoryKey{
		oldest: f.OldestBlock.String(),
		base:   strings.Join(baseStrs, ","),
		reward: strings.Join(rewardStrs, "|"),
	}
}

// FeeHistory calls eth_feeHistory against every provider and votes on the
// result. newestBlock is a block tag ("latest", "pending", or a hex number).
func (g *Gateway) FeeHistory(ctx context.Context, blockCount int, newestBlock string, rewardPercentiles []int) (Result[FeeHistory], error) {
	type attempt struct {
		history FeeHistory
		err     error
	}

	results := make([]attempt, len(g.providers))
	var wg sync.WaitGroup
	for i, p := range g.providers {
		wg.Add(1)
		go func(i int, p namedProvider) {
			defer wg.Done()
			var fh FeeHistory
			err := p.client.CallContext(ctx, &fh, "eth_feeHistory",
				hexutil.Uint64(blockCount), newestBlock, rewardPercentiles)
			results[i] = attempt{history: fh, err: err}
		}(i, p)
	}
	wg.Wait()

	var keys []feeHistoryKey
	var successes []FeeHistory
	for _, r := range results {
		if r.err == nil {
			keys = append(keys, r.history.voteKey())
			successes = append(successes, r.history)
		}
	}
	if len(successes) == 0 {
		return Result[FeeHistory]{}, common.NewSystemError(common.ErrRpcError, "all providers failed eth_feeHistory")
	}

	voteResult := vote(keys)
	if !voteResult.Consistent {
		g.log.Warn("fee history inconsistent across providers", "providers", len(successes))
		return Result[FeeHistory]{Consistent: false}, nil
	}
	return Result[FeeHistory]{Consistent: true, Value: successes[0]}, nil
}
