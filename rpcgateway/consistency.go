// Package rpcgateway abstracts a multi-provider EVM JSON-RPC endpoint. Every
// operation fans out to all configured providers concurrently and resolves
// to either a single agreed-upon value or Inconsistent, mirroring the
// multi-provider RPC canister this was distilled from.
package rpcgateway

import "github.com/rampforge/agent/common"

// Result is the outcome of polling every provider for one logical call.
// Exactly one of (Consistent, Value) holds meaning: when Consistent is
// false, Value is the zero value and callers must treat the call as
// retryable with the same nonce, per spec §4.4.
type Result[T any] struct {
	Consistent bool
	Value      T
}

// vote collapses per-provider results into a Result, requiring unanimous
// agreement among successful responses. A provider error does not by itself
// cause Inconsistent — callers pass only the values that succeeded, with the
// count of providers queried, so an outright quorum-of-one still counts as
// consistent when every other call failed outright (which is surfaced by the
// caller separately).
func vote[T comparable](values []T) Result[T] {
	if len(values) == 0 {
		var zero T
		return Result[T]{Consistent: false, Value: zero}
	}
	first := values[0]
	for _, v := range values[1:] {
		if v != first {
			var zero T
			return Result[T]{Consistent: false, Value: zero}
		}
	}
	return Result[T]{Consistent: true, Value: first}
}

// ErrInconsistent is returned by operations when providers disagree.
var ErrInconsistent = common.NewBlockchainError(common.ErrInconsistentStatus)
