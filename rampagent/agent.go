// Package rampagent wires C1-C10 into the single process-local object the
// rest of a deployment (cmd/rampd, and whatever thin request-handler
// surface fronts it) drives: one Store, one pair of timer registries, the
// signing oracle, a per-chain RPC/fee/tx-engine bundle, the order and user
// managers, and both payment-rail verifiers.
package rampagent

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/config"
	"github.com/rampforge/agent/feeestimator"
	"github.com/rampforge/agent/nonce"
	"github.com/rampforge/agent/order"
	"github.com/rampforge/agent/payment/paypal"
	"github.com/rampforge/agent/payment/revolut"
	"github.com/rampforge/agent/rpcgateway"
	"github.com/rampforge/agent/signer"
	"github.com/rampforge/agent/store"
	"github.com/rampforge/agent/timer"
	"github.com/rampforge/agent/txengine"
	"github.com/rampforge/agent/user"
)

// DefaultReceiptAttempts and DefaultReceiptInterval bound broadcast receipt
// polling at 60 * 4s = 4 minutes, matching spec §5's "hard cap of
// attempts × interval (default 4 min)".
const (
	DefaultReceiptAttempts = 60
	DefaultReceiptInterval = 4 * time.Second
)

// chainRuntime is the per-chain slice of C4/C6/C7: one RPC gateway (and
// therefore one fee estimator and tx engine), since rpcgateway.Gateway's
// consistency voting is scoped to the providers of a single chain.
type chainRuntime struct {
	gateway *rpcgateway.Gateway
	fees    *feeestimator.Estimator
	engine  *txengine.Engine
}

// Agent is the top-level wiring struct gluing every component together per
// spec §2's control-flow paragraph: OrderManager drives state transitions,
// TxEngine (nonce + fees + signer + RPC gateway) drives the on-chain leg,
// TimerService schedules lock-expiry and receipt polling, and
// PaymentVerifier is invoked on external verify calls.
type Agent struct {
	store       *store.Store
	configStore *config.Store
	rates       *config.ExchangeRateCache

	orderTimers *timer.Service
	logTimers   *timer.Service

	nonces *nonce.Manager
	oracle signer.Oracle

	orders *order.Manager
	users  *user.Manager

	paypal  *paypal.Verifier
	revolut *revolut.Client

	chains map[uint64]*chainRuntime

	log log.Logger
}

// New constructs an Agent from cfg, dialling every configured chain's RPC
// providers. oracle is supplied by the caller rather than built here — the
// signing boundary is meant to be backed by an HSM or a remote signer in
// production, matching signer.Oracle's own doc comment.
func New(ctx context.Context, cfg config.Config, oracle signer.Oracle, httpClient *http.Client) (*Agent, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	st := store.New()
	orderTimers := timer.New("order-locks")
	logTimers := timer.New("tx-logs")
	nonces := nonce.New()

	chains := make(map[uint64]*chainRuntime, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		gw := rpcgateway.New(cfg.ProxyURL, httpClient)
		for _, provider := range chain.RPCProviders {
			if err := gw.DialProvider(ctx, provider.Name, provider.URL); err != nil {
				return nil, err
			}
		}
		fees := feeestimator.New(gw)
		logs := txengine.NewLogStore(logTimers)
		chains[chain.ChainID] = &chainRuntime{
			gateway: gw,
			fees:    fees,
			engine:  txengine.New(oracle, nonces, fees, gw, logs),
		}
	}

	a := &Agent{
		store:       st,
		configStore: config.NewStore(cfg),
		rates:       config.NewExchangeRateCache(),
		orderTimers: orderTimers,
		logTimers:   logTimers,
		nonces:      nonces,
		oracle:      oracle,
		orders:      order.New(st, orderTimers),
		users:       user.New(st),
		paypal:      paypal.New(cfg.Paypal, httpClient, st),
		revolut:     revolut.New(cfg.Revolut, httpClient),
		chains:      chains,
		log:         log.New("component", "rampagent"),
	}
	return a, nil
}

// Orders, Users, Store, Rates, and Config expose the underlying components
// for callers (cmd/rampd's request-handler surface, tests) that need direct
// access beyond the orchestration methods below.
func (a *Agent) Orders() *order.Manager          { return a.orders }
func (a *Agent) Users() *user.Manager            { return a.users }
func (a *Agent) Store() *store.Store             { return a.store }
func (a *Agent) Rates() *config.ExchangeRateCache { return a.rates }
func (a *Agent) Config() config.Config           { return a.configStore.Get() }

// chainFor returns the runtime bundle for chainID, or BlockchainError
// ChainIDNotFound if no chain with that id was configured.
func (a *Agent) chainFor(chainID uint64) (*chainRuntime, error) {
	c, ok := a.chains[chainID]
	if !ok {
		return nil, common.NewChainIDNotFoundError(chainID)
	}
	return c, nil
}

// vaultManagerAddress returns chainID's configured vault contract, or
// VaultManagerAddressNotFound if the chain is unconfigured or has none set.
func (a *Agent) vaultManagerAddress(chainID uint64) (string, error) {
	chainCfg, ok := a.configStore.Get().ChainByID(chainID)
	if !ok || chainCfg.VaultManagerAddress == "" {
		return "", common.NewBlockchainError(common.ErrVaultManagerAddressNotFound)
	}
	return chainCfg.VaultManagerAddress, nil
}

// Reconfigure installs arg atop the live configuration, clears every
// payment adapter's cached access token, and returns the resulting Config.
// Rebuilding per-chain RPC gateways for a changed chain list is left to the
// caller restarting the Agent — a live provider swap mid-flight would race
// with in-flight nonce locks.
func (a *Agent) Reconfigure(arg config.UpdateArg) config.Config {
	next := config.Apply(a.configStore.Get(), arg)
	a.configStore.Replace(next)
	a.paypal.ResetToken()
	a.revolut.ResetToken()
	return next
}

// Snapshot captures the agent's full persisted state for a graceful
// shutdown, per spec §6's heap snapshot record.
func (a *Agent) Snapshot() config.Snapshot {
	return config.Dump(a.configStore, a.store, a.rates)
}

// Restore installs a prior Snapshot and rearms every Locked order's
// lock-expiry timer, per spec §6's restore procedure.
func (a *Agent) Restore(snap config.Snapshot) {
	config.Restore(snap, a.configStore, a.store, a.rates, a.orderTimers, a.orders)
}
