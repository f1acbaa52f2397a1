// Package rpcgatewaytest provides a deterministic in-memory RPCClient for
// exercising rpcgateway's consistency voting without a live JSON-RPC
// endpoint.
package rpcgatewaytest

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client is a scripted RPCClient: each method name maps to a canned
// response (or error) returned verbatim on every call.
type Client struct {
	Responses map[string]interface{}
	Errors    map[string]error
}

// New returns an empty scripted client.
func New() *Client {
	return &Client{
		Responses: make(map[string]interface{}),
		Errors:    make(map[string]error),
	}
}

// Stub registers the response CallContext returns for method.
func (c *Client) Stub(method string, response interface{}) *Client {
	c.Responses[method] = response
	return c
}

// StubError registers the error CallContext returns for method.
func (c *Client) StubError(method string, err error) *Client {
	c.Errors[method] = err
	return c
}

// CallContext implements rpcgateway.RPCClient by round-tripping the scripted
// response through JSON, so callers observe the same (un)marshaling quirks
// they would against a real provider.
func (c *Client) CallContext(_ context.Context, result interface{}, method string, _ ...interface{}) error {
	if err, ok := c.Errors[method]; ok {
		return err
	}
	resp, ok := c.Responses[method]
	if !ok {
		return fmt.Errorf("rpcgatewaytest: no stub registered for %q", method)
	}
	encoded, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, result)
}
