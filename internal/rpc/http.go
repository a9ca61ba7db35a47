package rpc

import (
	"encoding/json"
	"net/http"
)

// HTTPHandler exposes d over HTTP as a single POST endpoint, accepting
// either one Request object or a JSON array of Requests (batch, per the
// JSON-RPC 2.0 spec).
func HTTPHandler(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := decodeBody(r)
		if err != nil {
			writeJSON(w, http.StatusOK, Response{
				JSONRPC: "2.0",
				Error:   &Error{Code: ErrCodeParseError, Message: "invalid JSON"},
			})
			return
		}

		if body.batch != nil {
			writeJSON(w, http.StatusOK, d.HandleBatch(r.Context(), body.batch))
			return
		}
		writeJSON(w, http.StatusOK, d.Handle(r.Context(), *body.single))
	}
}

type decodedBody struct {
	single *Request
	batch  []Request
}

func decodeBody(r *http.Request) (decodedBody, error) {
	raw := json.RawMessage{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return decodedBody{}, err
	}

	trimmed := trimLeadingSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var batch []Request
		if err := json.Unmarshal(raw, &batch); err != nil {
			return decodedBody{}, err
		}
		return decodedBody{batch: batch}, nil
	}

	var single Request
	if err := json.Unmarshal(raw, &single); err != nil {
		return decodedBody{}, err
	}
	return decodedBody{single: &single}, nil
}

func trimLeadingSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return b[i:]
		}
	}
	return b[i:]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
