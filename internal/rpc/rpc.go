// Package rpc implements a JSON-RPC 2.0 dispatcher over the same search
// and registry operations internal/mcp exposes as MCP tools, for clients
// that speak plain JSON-RPC instead of MCP.
package rpc

import (
	"context"
	"encoding/json"
)

// Request is a single JSON-RPC 2.0 call.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Response is a single JSON-RPC 2.0 reply. Exactly one of Result/Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. It implements the error
// interface so handlers can return one directly and have it flow
// through MapError unchanged.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// HandlerFunc handles one method's params and returns a result or error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Dispatcher routes JSON-RPC requests by method name.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatcher; register methods with Register.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Register binds a method name to a handler. Registering the same name
// twice replaces the previous handler.
func (d *Dispatcher) Register(method string, fn HandlerFunc) {
	d.handlers[method] = fn
}

// Handle processes one already-decoded request and returns its response.
// A request with a nil ID is a JSON-RPC notification; Handle still runs
// the method but the caller should discard the reply per spec.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	if req.JSONRPC != "2.0" {
		resp.Error = &Error{Code: ErrCodeInvalidRequest, Message: "jsonrpc must be \"2.0\""}
		return resp
	}

	fn, ok := d.handlers[req.Method]
	if !ok {
		resp.Error = &Error{Code: ErrCodeMethodNotFound, Message: "method '" + req.Method + "' not found"}
		return resp
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		resp.Error = MapError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// HandleBatch processes a batch of requests (JSON-RPC 2.0 batch support),
// skipping replies for requests carrying no ID (notifications).
func (d *Dispatcher) HandleBatch(ctx context.Context, reqs []Request) []Response {
	out := make([]Response, 0, len(reqs))
	for _, req := range reqs {
		resp := d.Handle(ctx, req)
		if len(req.ID) == 0 || string(req.ID) == "null" {
			continue
		}
		out = append(out, resp)
	}
	return out
}
