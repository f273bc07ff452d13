// Package wire owns the control-plane and push-channel wire format.
//
// The format is the one produced by java.io.DataOutputStream, so existing
// participants interoperate unchanged:
//   - text: 2-byte big-endian length followed by modified UTF-8
//   - int32: 4-byte big-endian two's complement
//
// A control request is a text command name followed by its typed fields.
// The coordinator answers with one text acknowledgment and closes.
package wire
