package rpcproxy

import (
	"bytes"
	"encoding/json"
)

// JSON-RPC error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	// CodeServerError is used for non-2xx replies from the node.
	CodeServerError = -32000
)

var nullID = json.RawMessage("null")

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope builds the bytes of an error response for id. A valid id is
// written back exactly as received.
func ErrorEnvelope(id json.RawMessage, code int, message string) []byte {
	id = bytes.TrimSpace(id)
	if len(id) == 0 || !json.Valid(id) {
		id = nullID
	}

	var errBuf bytes.Buffer
	enc := json.NewEncoder(&errBuf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(&Error{Code: code, Message: message})

	var out bytes.Buffer
	out.WriteString(`{"jsonrpc":"2.0","id":`)
	out.Write(id)
	out.WriteString(`,"error":`)
	out.Write(bytes.TrimSuffix(errBuf.Bytes(), []byte("\n")))
	out.WriteByte('}')
	return out.Bytes()
}

// requestID returns the raw id of a single request, or null for batches and
// requests without one.
func requestID(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nullID
	}

	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil || len(head.ID) == 0 {
		return nullID
	}
	return head.ID
}
