package rpcgateway

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// RPCClient is the subset of *rpc.Client the gateway depends on, so tests can
// substitute an in-memory fake (see rpcgatewaytest) instead of a real
// provider connection.
type RPCClient interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type namedProvider struct {
	name   string
	client RPCClient
}

// Gateway fans every call out to a set of named providers and votes on the
// results. estimate_gas additionally needs a single HTTP proxy endpoint,
// since consistency voting isn't applied to it (spec §4.4).
type Gateway struct {
	providers []namedProvider
	proxyURL  string
	http      *http.Client
	log       log.Logger
}

// New constructs an empty gateway. proxyURL and httpClient back EstimateGas;
// providers are added with AddProvider or DialProvider.
func New(proxyURL string, httpClient *http.Client) *Gateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Gateway{
		proxyURL: proxyURL,
		http:     httpClient,
		log:      log.New("component", "rpcgateway"),
	}
}

// AddProvider registers an already-constructed client under name, e.g. the
// fakes in rpcgatewaytest.
func (g *Gateway) AddProvider(name string, client RPCClient) {
	g.providers = append(g.providers, namedProvider{name: name, client: client})
}

// DialProvider dials a real JSON-RPC endpoint and registers it under name.
func (g *Gateway) DialProvider(ctx context.Context, name, url string) error {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return err
	}
	g.AddProvider(name, client)
	return nil
}

func (g *Gateway) ProviderCount() int { return len(g.providers) }
