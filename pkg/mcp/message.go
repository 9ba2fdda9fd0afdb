// Package mcp provides JSON-RPC message types and the framing codec used to
// capture MCP (Model Context Protocol) traffic flowing through the proxy.
package mcp

import (
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Direction indicates which way a message is flowing through the proxy.
// The string form matches the wire value used in Raw Message Records.
type Direction int

const (
	// HostToServer indicates a message flowing from the MCP host to the server.
	HostToServer Direction = iota
	// ServerToHost indicates a message flowing from the MCP server to the host.
	ServerToHost
)

// String returns the canonical wire value for the direction.
func (d Direction) String() string {
	switch d {
	case HostToServer:
		return "host_to_server"
	case ServerToHost:
		return "server_to_host"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the direction as its wire string.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses the direction from its wire string.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "host_to_server":
		*d = HostToServer
	case "server_to_host":
		*d = ServerToHost
	default:
		*d = HostToServer
	}
	return nil
}

// Message wraps a single captured JSON-RPC line with proxy metadata.
// Raw holds the original bytes for byte-exact forwarding; Decoded and the
// derived fields below are populated on a best-effort basis for capture and
// are never required for the forwarding path to succeed.
type Message struct {
	// Raw contains the exact bytes observed on the wire, without the
	// trailing newline.
	Raw []byte

	// Direction records which pipe this message was observed on.
	Direction Direction

	// Timestamp is when the proxy observed the message.
	Timestamp time.Time

	// Decoded is the parsed JSON-RPC message, or nil if decoding failed.
	// The concrete type is either *jsonrpc.Request or *jsonrpc.Response.
	Decoded jsonrpc.Message

	// Captured reports whether this line satisfied the framing codec's
	// capture criteria (valid JSON, jsonrpc 2.0, method/result/error
	// present). A message can still be forwarded even when Captured is
	// false -- capture and forwarding are independent.
	Captured bool
}

// IsRequest returns true if the decoded message is a JSON-RPC request.
func (m *Message) IsRequest() bool {
	if m.Decoded == nil {
		return false
	}
	_, ok := m.Decoded.(*jsonrpc.Request)
	return ok
}

// IsResponse returns true if the decoded message is a JSON-RPC response.
func (m *Message) IsResponse() bool {
	if m.Decoded == nil {
		return false
	}
	_, ok := m.Decoded.(*jsonrpc.Response)
	return ok
}

// Method returns the method name if this is a request, empty string otherwise.
func (m *Message) Method() string {
	req, ok := m.Decoded.(*jsonrpc.Request)
	if !ok {
		return ""
	}
	return req.Method
}

// IsToolCall returns true if this message is a tools/call request.
func (m *Message) IsToolCall() bool {
	return m.Method() == "tools/call"
}

// HasError returns true if this is a response carrying a JSON-RPC error.
func (m *Message) HasError() bool {
	resp, ok := m.Decoded.(*jsonrpc.Response)
	if !ok {
		return false
	}
	return resp.Error != nil
}

// ErrorCode returns the JSON-RPC error code, or 0 if there is none.
func (m *Message) ErrorCode() int64 {
	resp, ok := m.Decoded.(*jsonrpc.Response)
	if !ok || resp.Error == nil {
		return 0
	}
	return resp.Error.Code
}

// ErrorMessage returns the JSON-RPC error message, or "" if there is none.
func (m *Message) ErrorMessage() string {
	resp, ok := m.Decoded.(*jsonrpc.Response)
	if !ok || resp.Error == nil {
		return ""
	}
	return resp.Error.Message
}

// RawID extracts the "id" field directly from the raw bytes. The SDK's
// jsonrpc.ID type does not round-trip cleanly through interface{}, so
// correlation keys are built from the raw JSON instead of the decoded form.
func (m *Message) RawID() json.RawMessage {
	if m.Raw == nil {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(m.Raw, &fields); err != nil {
		return nil
	}
	return fields["id"]
}

// ToolCallArgs extracts the tool name and arguments from a tools/call
// request's params. ok is false if this is not a tools/call request or the
// params could not be parsed.
func (m *Message) ToolCallArgs() (name string, args map[string]interface{}, ok bool) {
	req, isReq := m.Decoded.(*jsonrpc.Request)
	if !isReq || req.Method != "tools/call" || req.Params == nil {
		return "", nil, false
	}
	var params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return "", nil, false
	}
	return params.Name, params.Arguments, true
}
