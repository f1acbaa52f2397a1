package rpcgateway

import (
	"context"
	"strconv"
	"strings"
	"sync"

	rampcommon "github.com/rampforge/agent/common"
)

// SendOutcomeKind enumerates the classified results of eth_sendRawTransaction
// per spec §4.4.
type SendOutcomeKind int

const (
	SendOK SendOutcomeKind = iota
	SendNonceTooLow
	SendNonceTooHigh
	SendInsufficientFunds
	SendReplacementUnderpriced
)

// SendOutcome is the classified, voted-on result of broadcasting a raw
// transaction. Hash is set only for SendOK, and even then may be empty if
// the provider accepted the tx without echoing a hash.
type SendOutcome struct {
	Kind SendOutcomeKind
	Hash string
}

func (o SendOutcome) voteKey() string {
	return strconv.Itoa(int(o.Kind)) + "|" + o.Hash
}

func classifySendError(err error) SendOutcome {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"):
		return SendOutcome{Kind: SendNonceTooLow}
	case strings.Contains(msg, "nonce too high"):
		return SendOutcome{Kind: SendNonceTooHigh}
	case strings.Contains(msg, "insufficient funds"):
		return SendOutcome{Kind: SendInsufficientFunds}
	case strings.Contains(msg, "replacement transaction underpriced"), strings.Contains(msg, "replacement underpriced"):
		return SendOutcome{Kind: SendReplacementUnderpriced}
	default:
		return SendOutcome{}
	}
}

// SendRawTransaction submits rawTxHex to every provider and votes on the
// classified outcome. A provider-level RPC error (as opposed to a revert
// reason embedded in the response) is itself classified via
// classifySendError, so "nonce too low" from one provider counts the same as
// a structured NonceTooLow from another.
func (g *Gateway) SendRawTransaction(ctx context.Context, rawTxHex string) (Result[SendOutcome], error) {
	outcomes := make([]SendOutcome, 0, len(g.providers))
	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, p := range g.providers {
		wg.Add(1)
		go func(p namedProvider) {
			defer wg.Done()
			var hash string
			err := p.client.CallContext(ctx, &hash, "eth_sendRawTransaction", rawTxHex)
			var outcome SendOutcome
			if err != nil {
				outcome = classifySendError(err)
			} else {
				outcome = SendOutcome{Kind: SendOK, Hash: hash}
			}
			mu.Lock()
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	if len(outcomes) == 0 {
		return Result[SendOutcome]{}, rampcommon.NewSystemError(rampcommon.ErrRpcError, "no providers configured")
	}

	keys := make([]string, len(outcomes))
	for i, o := range outcomes {
		keys[i] = o.voteKey()
	}
	v := vote(keys)
	if !v.Consistent {
		g.log.Warn("send_raw_transaction outcome inconsistent across providers")
		return Result[SendOutcome]{Consistent: false}, nil
	}
	return Result[SendOutcome]{Consistent: true, Value: outcomes[0]}, nil
}
