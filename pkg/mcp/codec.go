package mcp

import (
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/tidwall/gjson"
)

// EncodeMessage serializes a JSON-RPC message to its wire format.
// This delegates to the MCP SDK's jsonrpc package.
func EncodeMessage(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// DecodeMessage deserializes JSON-RPC wire format data into a Message.
// It returns either a *jsonrpc.Request or *jsonrpc.Response based on the message content.
// This delegates to the MCP SDK's jsonrpc package.
func DecodeMessage(data []byte) (jsonrpc.Message, error) {
	return jsonrpc.DecodeMessage(data)
}

// isCaptureEligible cheaply probes a raw line for the framing codec's
// capture criteria without paying for a full decode: the line must carry
// "jsonrpc":"2.0" and at least one of method, result, or error. Forwarding
// never depends on this check; it only decides whether the line is worth
// the cost of a full jsonrpc decode for the message store.
func isCaptureEligible(raw []byte) bool {
	if !gjson.ValidBytes(raw) {
		return false
	}
	parsed := gjson.ParseBytes(raw)
	if parsed.Get("jsonrpc").String() != "2.0" {
		return false
	}
	return parsed.Get("method").Exists() || parsed.Get("result").Exists() || parsed.Get("error").Exists()
}

// WrapMessage builds a Message from a raw line observed on the wire. It
// always succeeds from the caller's perspective: decode failures simply
// leave Decoded nil and Captured false, since capture is best-effort and
// must never interfere with forwarding the raw bytes.
func WrapMessage(raw []byte, dir Direction) *Message {
	msg := &Message{
		Raw:       raw,
		Direction: dir,
		Timestamp: time.Now(),
	}

	if !isCaptureEligible(raw) {
		return msg
	}

	decoded, err := jsonrpc.DecodeMessage(raw)
	if err != nil {
		return msg
	}

	msg.Decoded = decoded
	msg.Captured = true
	return msg
}
