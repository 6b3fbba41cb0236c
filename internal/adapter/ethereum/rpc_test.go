package ethereum

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcHandler func(params json.RawMessage) (any, *rpcError)

// fakeNode is a JSON-RPC 2.0 endpoint scripted per method.
type fakeNode struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string][]json.RawMessage
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	n := &fakeNode{handlers: make(map[string]rpcHandler), calls: make(map[string][]json.RawMessage)}
	srv := httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) handle(method string, h rpcHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[method] = h
}

func (n *fakeNode) result(method string, v any) {
	n.handle(method, func(json.RawMessage) (any, *rpcError) { return v, nil })
}

func (n *fakeNode) fail(method string, code int, msg string) {
	n.handle(method, func(json.RawMessage) (any, *rpcError) { return nil, &rpcError{Code: code, Message: msg} })
}

func (n *fakeNode) params(method string) []json.RawMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func (n *fakeNode) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method] = append(n.calls[req.Method], req.Params)
	h, ok := n.handlers[req.Method]
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case !ok:
		resp["error"] = rpcError{Code: -32601, Message: "method not found: " + req.Method}
	default:
		result, rerr := h(req.Params)
		if rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
