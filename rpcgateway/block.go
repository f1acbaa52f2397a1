package rpcgateway

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	rampcommon "github.com/rampforge/agent/common"
)

// Block is the subset of eth_getBlockByNumber's result the agent consumes.
type Block struct {
	Number        hexutil.Uint64 `json:"number"`
	Hash          common.Hash    `json:"hash"`
	Timestamp     hexutil.Uint64 `json:"timestamp"`
	BaseFeePerGas *hexutil.Big   `json:"baseFeePerGas"`
}

func (b Block) voteKey() string {
	base := "nil"
	if b.BaseFeePerGas != nil {
		base = b.BaseFeePerGas.String()
	}
	return strings.Join([]string{b.Number.String(), b.Hash.Hex(), b.Timestamp.String(), base}, "|")
}

// GetBlockByNumber calls eth_getBlockByNumber(tag, false) against every
// provider and votes on the result.
func (g *Gateway) GetBlockByNumber(ctx context.Context, tag string) (Result[Block], error) {
	type attempt struct {
		block Block
		err   error
	}
	results := make([]attempt, len(g.providers))
	var wg sync.WaitGroup
	for i, p := range g.providers {
		wg.Add(1)
		go func(i int, p namedProvider) {
			defer wg.Done()
			var b Block
			err := p.client.CallContext(ctx, &b, "eth_getBlockByNumber", tag, false)
			results[i] = attempt{block: b, err: err}
		}(i, p)
	}
	wg.Wait()

	var keys []string
	var successes []Block
	for _, r := range results {
		if r.err == nil {
			keys = append(keys, r.block.voteKey())
			successes = append(successes, r.block)
		}
	}
	if len(successes) == 0 {
		return Result[Block]{}, rampcommon.NewSystemError(rampcommon.ErrRpcError, "all providers failed eth_getBlockByNumber")
	}
	v := vote(keys)
	if !v.Consistent {
		return Result[Block]{Consistent: false}, nil
	}
	return Result[Block]{Consistent: true, Value: successes[0]}, nil
}
