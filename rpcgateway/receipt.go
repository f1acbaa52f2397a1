package rpcgateway

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	rampcommon "github.com/rampforge/agent/common"
)

// Receipt is the subset of an eth_getTransactionReceipt result the agent
// consumes to decide whether a transaction confirmed or reverted, and to
// feed gas telemetry (gas_used x effective_gas_price at block_number).
type Receipt struct {
	TransactionHash   common.Hash    `json:"transactionHash"`
	BlockNumber       hexutil.Uint64 `json:"blockNumber"`
	Status            hexutil.Uint64 `json:"status"` // 1 = success, 0 = reverted
	GasUsed           hexutil.Uint64 `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big   `json:"effectiveGasPrice"`
}

func (r *Receipt) voteKey() string {
	if r == nil {
		return "nil"
	}
	price := "nil"
	if r.EffectiveGasPrice != nil {
		price = (*big.Int)(r.EffectiveGasPrice).String()
	}
	return strings.Join([]string{r.TransactionHash.Hex(), r.BlockNumber.String(), r.Status.String(), r.GasUsed.String(), price}, "|")
}

// GetTransactionReceipt polls every provider for txHash's receipt and votes
// on the result. A nil Receipt (not yet mined) is a valid, votable outcome.
func (g *Gateway) GetTransactionReceipt(ctx context.Context, txHash string) (Result[*Receipt], error) {
	type attempt struct {
		receipt *Receipt
		err     error
	}
	results := make([]attempt, len(g.providers))
	var wg sync.WaitGroup
	for i, p := range g.providers {
		wg.Add(1)
		go func(i int, p namedProvider) {
			defer wg.Done()
			var r *Receipt
			err := p.client.CallContext(ctx, &r, "eth_getTransactionReceipt", txHash)
			results[i] = attempt{receipt: r, err: err}
		}(i, p)
	}
	wg.Wait()

	var keys []string
	var successes []*Receipt
	for _, r := range results {
		if r.err == nil {
			keys = append(keys, r.receipt.voteKey())
			successes = append(successes, r.receipt)
		}
	}
	if len(successes) == 0 {
		return Result[*Receipt]{}, rampcommon.NewSystemError(rampcommon.ErrRpcError, "all providers failed eth_getTransactionReceipt")
	}
	v := vote(keys)
	if !v.Consistent {
		return Result[*Receipt]{Consistent: false}, nil
	}
	return Result[*Receipt]{Consistent: true, Value: successes[0]}, nil
}
