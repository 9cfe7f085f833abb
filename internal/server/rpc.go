package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/copyleftdev/simplex/internal/errors"
)

// JSON-RPC 2.0 protocol error codes.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *rpcError   `json:"error,omitempty"`
}

type idParams struct {
	OptimizationID string `json:"optimization_id"`
}

type rpcHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

func (s *Server) rpcMethods() map[string]rpcHandler {
	return map[string]rpcHandler{
		"optimization.start": func(_ context.Context, params json.RawMessage) (interface{}, error) {
			var req OptimizeRequest
			if err := decodeParams(params, &req); err != nil {
				return nil, err
			}
			return s.startJob(req)
		},
		"optimization.status": func(ctx context.Context, params json.RawMessage) (interface{}, error) {
			id, err := decodeID(params)
			if err != nil {
				return nil, err
			}
			return s.jobStatus(ctx, id)
		},
		"optimization.cancel": func(_ context.Context, params json.RawMessage) (interface{}, error) {
			id, err := decodeID(params)
			if err != nil {
				return nil, err
			}
			if err := s.cancelJob(id); err != nil {
				return nil, err
			}
			return map[string]string{"optimization_id": id, "status": StatusCancelled}, nil
		},
		"optimization.simplices": func(_ context.Context, params json.RawMessage) (interface{}, error) {
			id, err := decodeID(params)
			if err != nil {
				return nil, err
			}
			simplices, err := s.jobSimplices(id)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"optimization_id": id, "simplices": simplices}, nil
		},
		"objectives.list": func(context.Context, json.RawMessage) (interface{}, error) {
			return listObjectives(), nil
		},
	}
}

// decodeParams accepts params either as an object or as a one-element
// array holding the object.
func decodeParams(raw json.RawMessage, dst interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return errors.New(errors.KindInvalid, "missing required parameters")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) != 1 {
			return errors.New(errors.KindInvalid, "invalid parameter format, expected one object")
		}
		raw = list[0]
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, errors.KindInvalid, "invalid parameters")
	}
	return nil
}

func decodeID(raw json.RawMessage) (string, error) {
	var p idParams
	if err := decodeParams(raw, &p); err != nil {
		return "", err
	}
	if p.OptimizationID == "" {
		return "", errors.New(errors.KindInvalid, "optimization_id is required")
	}
	return p.OptimizationID, nil
}

// handleJSONRPC handles JSON-RPC 2.0 requests. Protocol and method errors
// are reported in the body with status 200.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, rpcParseError, "Parse error", nil)
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.respondWithError(w, rpcInvalidRequest, "Invalid Request", req.ID)
		return
	}

	method, ok := s.rpcMethods()[req.Method]
	if !ok {
		s.respondWithError(w, rpcMethodNotFound, "Method not found", req.ID)
		return
	}

	result, err := method(r.Context(), req.Params)
	if err != nil {
		kind := errors.KindOf(err)
		if kind == errors.KindInternal {
			s.logger.Error("RPC method failed", map[string]interface{}{
				"method": req.Method,
				"error":  err.Error(),
			})
		}
		s.respondWithError(w, kind.RPCCode(), err.Error(), req.ID)
		return
	}

	s.writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// respondWithError sends a JSON-RPC 2.0 error response
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Debug("RPC error", map[string]interface{}{
		"code":    code,
		"message": message,
	})
	s.writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &rpcError{Code: code, Message: message},
	})
}
