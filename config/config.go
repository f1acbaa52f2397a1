// Package config holds the agent's persistent installation/upgrade
// arguments: the chain registry, the signing oracle's key identifier, and
// the two payment-rail credentials. It is mutated only through Apply, which
// mirrors the teacher's read_state/mutate_state split — every other package
// reaches config state through Store.Get's snapshot copy, never a pointer
// into the live value.
package config

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rampforge/agent/payment/paypal"
	"github.com/rampforge/agent/payment/revolut"
)

// RPCProvider is one named JSON-RPC endpoint behind a chain's services
// descriptor; rpcgateway.Gateway dials one of these per registered name.
type RPCProvider struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ChainConfig is a chain's static descriptor: its vault contract, its RPC
// provider set, and the fiat currency its orders are denominated in.
// Ownership of this struct is global configuration, per spec §3 ("ChainState
// is owned by global configuration, mutated only via the state-mutation
// wrapper"); the mutable parts of ChainState (nonce register, gas telemetry)
// live in the nonce and txengine packages instead, keyed by ChainID.
type ChainConfig struct {
	ChainID              uint64        `json:"chain_id"`
	VaultManagerAddress  string        `json:"vault_manager_address"`
	RPCProviders         []RPCProvider `json:"services"`
	CurrencySymbol       string        `json:"currency_symbol"`
}

// Config is the full set of install/upgrade arguments.
type Config struct {
	Chains     []ChainConfig   `json:"chains"`
	EcdsaKeyID string          `json:"ecdsa_key_id"`
	Paypal     paypal.Config   `json:"paypal"`
	Revolut    revolut.Config  `json:"revolut"`
	ProxyURL   string          `json:"proxy_url"`
}

// UpdateArg is an upgrade argument: any non-nil field replaces the
// corresponding Config field wholesale, matching spec §6's "an update arg
// may replace any of these".
type UpdateArg struct {
	Chains     *[]ChainConfig  `json:"chains,omitempty"`
	EcdsaKeyID *string         `json:"ecdsa_key_id,omitempty"`
	Paypal     *paypal.Config  `json:"paypal,omitempty"`
	Revolut    *revolut.Config `json:"revolut,omitempty"`
	ProxyURL   *string         `json:"proxy_url,omitempty"`
}

// Apply returns cfg with every field present in arg replaced.
func Apply(cfg Config, arg UpdateArg) Config {
	if arg.Chains != nil {
		cfg.Chains = *arg.Chains
	}
	if arg.EcdsaKeyID != nil {
		cfg.EcdsaKeyID = *arg.EcdsaKeyID
	}
	if arg.Paypal != nil {
		cfg.Paypal = *arg.Paypal
	}
	if arg.Revolut != nil {
		cfg.Revolut = *arg.Revolut
	}
	if arg.ProxyURL != nil {
		cfg.ProxyURL = *arg.ProxyURL
	}
	return cfg
}

// TokenResetter is implemented by payment.Verifier adapters that cache a
// bearer/access token locally. Apply never touches adapters directly (it
// only computes the next Config value) — the caller driving an upgrade is
// responsible for calling ResetToken on every live adapter afterward, per
// spec §6's "access tokens are always cleared".
type TokenResetter interface {
	ResetToken()
}

// Store is the single-writer holder of the live Config, read through Get's
// copy and written only by Replace, matching the teacher's
// read_state/mutate_state discipline.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore wraps an already-loaded Config.
func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace installs newCfg as the current configuration.
func (s *Store) Replace(newCfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = newCfg
}

// ChainByID returns the chain descriptor for chainID, if configured.
func (c Config) ChainByID(chainID uint64) (ChainConfig, bool) {
	for _, chain := range c.Chains {
		if chain.ChainID == chainID {
			return chain, true
		}
	}
	return ChainConfig{}, false
}

// Load reads a JSON-encoded Config from path, the Go analogue of the
// canister's install/upgrade candid argument.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as JSON to path.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
