// Package txengine is C7 TxEngine: it turns a vault-manager call into a
// signed EIP-1559 transaction, broadcasts it through the RPC gateway, and
// tracks its confirmation through a per-order transaction log.
package txengine

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	rampcommon "github.com/rampforge/agent/common"
	"github.com/rampforge/agent/feeestimator"
	"github.com/rampforge/agent/nonce"
	"github.com/rampforge/agent/rpcgateway"
	"github.com/rampforge/agent/signer"
)

// maxNonceRetries bounds how many times Broadcast will re-lock and resend
// after the gateway reports NonceTooLow, which happens when another
// broadcast (outside this manager's view, e.g. a manual vault-manager call)
// consumed the nonce first.
const maxNonceRetries = 3

// RPC is the subset of rpcgateway.Gateway the engine depends on.
type RPC interface {
	SendRawTransaction(ctx context.Context, rawTxHex string) (rpcgateway.Result[rpcgateway.SendOutcome], error)
	GetTransactionReceipt(ctx context.Context, txHash string) (rpcgateway.Result[*rpcgateway.Receipt], error)
}

// Fees is the subset of feeestimator.Estimator the engine depends on.
type Fees interface {
	Estimate(ctx context.Context, chainID uint64, blockCount int) (feeestimator.Estimates, error)
}

// Engine wires the signing oracle, nonce manager, fee estimator, and RPC
// gateway into the build→sign→broadcast→confirm pipeline.
type Engine struct {
	oracle signer.Oracle
	nonces *nonce.Manager
	fees   Fees
	rpc    RPC
	logs   *LogStore
	gas    *GasTracker
	log    log.Logger
}

func New(oracle signer.Oracle, nonces *nonce.Manager, fees Fees, rpc RPC, logs *LogStore) *Engine {
	return &Engine{
		oracle: oracle,
		nonces: nonces,
		fees:   fees,
		rpc:    rpc,
		logs:   logs,
		gas:    NewGasTracker(),
		log:    log.New("component", "txengine"),
	}
}

// AverageGas exposes the engine's gas telemetry for chainID/action, the Go
// analogue of get_average_gas. window defaults to DefaultGasWindowBlocks
// when 0.
func (e *Engine) AverageGas(chainID, currentBlock, window uint64, action Action) (avgGas uint64, avgPrice *big.Int, ok bool, err error) {
	if window == 0 {
		window = DefaultGasWindowBlocks
	}
	return e.gas.AverageGas(chainID, currentBlock, window, action)
}

// Request describes a single vault-manager (or ERC-20) call to build, sign,
// and broadcast.
type Request struct {
	OrderID uint64
	ChainID uint64
	Action  Action
	To      string // vault manager address, or token address for Transfer
	Value   *big.Int
	Args    []interface{} // packed into Action.FunctionName()'s calldata
	Gas     uint64        // 0 => Action.DefaultGas(ChainID)
}

// Broadcast builds req into a signed EIP-1559 transaction and sends it to
// every configured provider, retrying once per NonceTooLow report up to
// maxNonceRetries. The returned hash is recorded Pending in the engine's
// transaction log; call Confirm to wait for its receipt.
func (e *Engine) Broadcast(ctx context.Context, req Request) (string, error) {
	e.logs.New(req.OrderID, req.Action)

	for attempt := 0; ; attempt++ {
		hash, retry, err := e.broadcastOnce(ctx, req)
		if err == nil {
			e.logs.Update(req.OrderID, PendingStatus(hash))
			return hash, nil
		}
		if !retry || attempt >= maxNonceRetries {
			e.logs.Update(req.OrderID, BroadcastErrorStatus(err.Error()))
			return "", err
		}
		e.log.Warn("retrying broadcast after nonce conflict", "order_id", req.OrderID, "attempt", attempt+1)
	}
}

// broadcastOnce performs a single lock→build→sign→send attempt. retry is
// true only when the caller should try again with a freshly locked nonce.
func (e *Engine) broadcastOnce(ctx context.Context, req Request) (hash string, retry bool, err error) {
	calldata, err := packCalldata(req.Action, req.Args)
	if err != nil {
		return "", false, err
	}

	estimates, err := e.fees.Estimate(ctx, req.ChainID, 9)
	if err != nil {
		return "", false, err
	}

	chainNonce, err := e.nonces.GetAndLock(req.ChainID)
	if err != nil {
		return "", false, err
	}

	gas := req.Gas
	if gas == 0 {
		gas = req.Action.DefaultGas(req.ChainID)
	}
	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	to := common.HexToAddress(req.To)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   new(big.Int).SetUint64(req.ChainID),
		Nonce:     chainNonce,
		GasTipCap: estimates.MaxPriorityFeePerGas,
		GasFeeCap: estimates.MaxFeePerGas,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      calldata,
	})

	ethSigner := types.LatestSignerForChainID(new(big.Int).SetUint64(req.ChainID))
	sigHash := ethSigner.Hash(tx)

	var digest [32]byte
	copy(digest[:], sigHash.Bytes())

	rawSig, err := e.oracle.Sign(digest)
	if err != nil {
		e.nonces.Release(req.ChainID)
		return "", false, err
	}
	yParity, err := signer.YParity(digest, rawSig, e.oracle.PublicKey())
	if err != nil {
		e.nonces.Release(req.ChainID)
		return "", false, err
	}

	sigBytes := make([]byte, 65)
	copy(sigBytes, rawSig[:])
	sigBytes[64] = byte(yParity)

	signedTx, err := tx.WithSignature(ethSigner, sigBytes)
	if err != nil {
		e.nonces.Release(req.ChainID)
		return "", false, err
	}

	rawBytes, err := signedTx.MarshalBinary()
	if err != nil {
		e.nonces.Release(req.ChainID)
		return "", false, err
	}
	rawHex := "0x" + hex.EncodeToString(rawBytes)

	res, err := e.rpc.SendRawTransaction(ctx, rawHex)
	if err != nil {
		e.nonces.Release(req.ChainID)
		return "", false, err
	}
	if !res.Consistent {
		e.nonces.Release(req.ChainID)
		return "", false, rampcommon.NewBlockchainError(rampcommon.ErrInconsistentStatus)
	}

	switch res.Value.Kind {
	case rpcgateway.SendOK:
		usedNonce := chainNonce
		e.nonces.ReleaseAndIncrement(req.ChainID, &usedNonce)
		return res.Value.Hash, false, nil
	case rpcgateway.SendNonceTooLow:
		// The provider has already seen a higher nonce than our local view,
		// so releasing without advancing would hand the identical stale
		// nonce back out on retry and loop to maxNonceRetries for nothing.
		// Resync by advancing past the rejected nonce, per spec §4.7's
		// "resync local nonce … release_and_increment, retry once from
		// Build."
		usedNonce := chainNonce
		e.nonces.ReleaseAndIncrement(req.ChainID, &usedNonce)
		return "", true, rampcommon.NewBlockchainError(rampcommon.ErrNonceTooLow)
	case rpcgateway.SendNonceTooHigh:
		e.nonces.SetUnresolved(req.ChainID, &chainNonce, nonce.FeeEstimates{
			MaxFeePerGas:         estimates.MaxFeePerGas,
			MaxPriorityFeePerGas: estimates.MaxPriorityFeePerGas,
		})
		e.nonces.Release(req.ChainID)
		return "", false, rampcommon.NewBlockchainError(rampcommon.ErrNonceTooHigh)
	case rpcgateway.SendReplacementUnderpriced:
		e.nonces.Release(req.ChainID)
		return "", false, rampcommon.NewBlockchainError(rampcommon.ErrReplacementUnderpriced)
	case rpcgateway.SendInsufficientFunds:
		e.nonces.Release(req.ChainID)
		return "", false, rampcommon.NewBlockchainError(rampcommon.ErrInsufficientFunds)
	default:
		e.nonces.Release(req.ChainID)
		return "", false, rampcommon.NewBlockchainError(rampcommon.ErrInsufficientFunds)
	}
}

func packCalldata(action Action, args []interface{}) ([]byte, error) {
	parsed, err := ethabi.JSON(strings.NewReader(action.ABI()))
	if err != nil {
		return nil, rampcommon.NewEthersAbiError("failed to parse vault-manager abi: " + err.Error())
	}
	packed, err := parsed.Pack(action.FunctionName(), args...)
	if err != nil {
		return nil, rampcommon.NewEthersAbiError("failed to encode call: " + err.Error())
	}
	return packed, nil
}

// Confirm polls the RPC gateway for txHash's receipt every interval, up to
// attempts times, updating the transaction log as it goes. It mirrors
// wait_for_transaction_confirmation's default (60 attempts, 4s interval).
func (e *Engine) Confirm(ctx context.Context, chainID, orderID uint64, action Action, txHash string, attempts int, interval time.Duration) (*rpcgateway.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i < attempts; i++ {
		res, err := e.rpc.GetTransactionReceipt(ctx, txHash)
		if err == nil && res.Consistent && res.Value != nil {
			receipt := res.Value
			if receipt.Status == 1 {
				e.logs.Update(orderID, ConfirmedStatus(txHash, receipt))
				gasPrice := big.NewInt(0)
				if receipt.EffectiveGasPrice != nil {
					gasPrice = (*big.Int)(receipt.EffectiveGasPrice)
				}
				e.gas.RecordGasUsage(chainID, uint64(receipt.GasUsed), gasPrice, uint64(receipt.BlockNumber), action)
				return receipt, nil
			}
			e.logs.Update(orderID, FailedStatus(txHash, "transaction reverted"))
			return receipt, rampcommon.NewBlockchainError(rampcommon.ErrEvmExecutionReverted)
		}

		select {
		case <-ctx.Done():
			e.logs.Update(orderID, UnresolvedStatus(txHash))
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	e.logs.Update(orderID, UnresolvedStatus(txHash))
	return nil, rampcommon.NewBlockchainError(rampcommon.ErrTransactionTimeout)
}
