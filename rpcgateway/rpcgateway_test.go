package rpcgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/rampforge/agent/rpcgateway/rpcgatewaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeHistoryConsistent(t *testing.T) {
	g := New("", nil)
	resp := map[string]interface{}{
		"oldestBlock":   "0x1",
		"baseFeePerGas": []string{"0x3b9aca00"},
		"gasUsedRatio":  []float64{0.5},
		"reward":        [][]string{{"0x59682f00"}},
	}
	g.AddProvider("a", rpcgatewaytest.New().Stub("eth_feeHistory", resp))
	g.AddProvider("b", rpcgatewaytest.New().Stub("eth_feeHistory", resp))

	res, err := g.FeeHistory(context.Background(), 9, "latest", []int{95})
	require.NoError(t, err)
	assert.True(t, res.Consistent)
}

func TestFeeHistoryInconsistent(t *testing.T) {
	g := New("", nil)
	g.AddProvider("a", rpcgatewaytest.New().Stub("eth_feeHistory", map[string]interface{}{
		"oldestBlock": "0x1", "baseFeePerGas": []string{"0x1"}, "gasUsedRatio": []float64{0.1}, "reward": [][]string{{"0x1"}},
	}))
	g.AddProvider("b", rpcgatewaytest.New().Stub("eth_feeHistory", map[string]interface{}{
		"oldestBlock": "0x2", "baseFeePerGas": []string{"0x2"}, "gasUsedRatio": []float64{0.2}, "reward": [][]string{{"0x2"}},
	}))

	res, err := g.FeeHistory(context.Background(), 9, "latest", []int{95})
	require.NoError(t, err)
	assert.False(t, res.Consistent)
}

func TestSendRawTransactionClassifiesNonceTooLow(t *testing.T) {
	g := New("", nil)
	g.AddProvider("a", rpcgatewaytest.New().StubError("eth_sendRawTransaction", errors.New("nonce too low")))
	g.AddProvider("b", rpcgatewaytest.New().StubError("eth_sendRawTransaction", errors.New("nonce too low")))

	res, err := g.SendRawTransaction(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	require.True(t, res.Consistent)
	assert.Equal(t, SendNonceTooLow, res.Value.Kind)
}

func TestSendRawTransactionOK(t *testing.T) {
	g := New("", nil)
	g.AddProvider("a", rpcgatewaytest.New().Stub("eth_sendRawTransaction", "0xabc123"))
	g.AddProvider("b", rpcgatewaytest.New().Stub("eth_sendRawTransaction", "0xabc123"))

	res, err := g.SendRawTransaction(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	require.True(t, res.Consistent)
	assert.Equal(t, SendOK, res.Value.Kind)
	assert.Equal(t, "0xabc123", res.Value.Hash)
}

func TestGetTransactionReceiptPending(t *testing.T) {
	g := New("", nil)
	g.AddProvider("a", rpcgatewaytest.New().Stub("eth_getTransactionReceipt", nil))
	g.AddProvider("b", rpcgatewaytest.New().Stub("eth_getTransactionReceipt", nil))

	res, err := g.GetTransactionReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	require.True(t, res.Consistent)
	assert.Nil(t, res.Value)
}
