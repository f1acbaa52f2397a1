package rpcgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rampforge/agent/common"
)

// EstimateGasParams mirrors the eth_estimateGas call parameters, with value
// and data left as hex strings since they are passed through untouched.
type EstimateGasParams struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data,omitempty"`
}

type jsonRPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

type jsonRPCResponse struct {
	Result string        `json:"result"`
	Error  *jsonRPCError `json:"error"`
}

// EstimateGas performs a single raw JSON-RPC eth_estimateGas call through the
// gateway's configured proxy. Consistency voting does not apply here — a
// single upstream, routed through a proxy, answers the call (spec §4.4).
// A JSON body of the form {"error":{"code","message"}} is translated into
// EvmExecutionReverted(code, msg).
func (g *Gateway) EstimateGas(ctx context.Context, chainID uint64, params EstimateGasParams) (*uint64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "eth_estimateGas",
		"params":  []interface{}{params},
		"id":      1,
	})
	if err != nil {
		return nil, common.NewSystemError(common.ErrParseError, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.proxyURL, bytes.NewReader(body))
	if err != nil {
		return nil, common.NewSystemError(common.ErrInternalError, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("idempotency-key", fmt.Sprintf("estimate-gas-%d-%d", chainID, time.Now().UnixNano()))

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, common.NewHttpRequestError(0, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.NewSystemError(common.ErrInternalError, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return nil, common.NewHttpRequestError(int64(resp.StatusCode), "http error")
	}

	var parsed jsonRPCResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, common.NewSystemError(common.ErrParseError, err.Error())
	}

	if parsed.Error != nil {
		return nil, common.NewEvmExecutionRevertedError(parsed.Error.Code, parsed.Error.Message)
	}
	if parsed.Result == "" {
		return nil, common.NewBlockchainError(common.ErrGasEstimationFailed)
	}

	gas, err := strconv.ParseUint(strings.TrimPrefix(parsed.Result, "0x"), 16, 64)
	if err != nil {
		return nil, common.NewBlockchainError(common.ErrGasEstimationFailed)
	}
	return &gas, nil
}
