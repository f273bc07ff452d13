package wire

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/bft-labs/groupcast/internal/domain"
)

// AddressLabelWidth is the number of leading UTF-16 code units of a
// self-reported address that the coordinator discards before using the rest
// as a host.
//
// Participants send "hostname/address", e.g. "localhost/127.0.0.1";
// the width matches "localhost/" only. Other host names are sliced wrongly.
// Kept for compatibility with deployed participants.
const AddressLabelWidth = 10

// identityLabel is the fixed-width label Identity prepends.
const identityLabel = "localhost/"

// Request is one control-plane request exactly as it travels on the wire.
type Request struct {
	Kind     domain.CommandKind
	ID       int32
	Port     int32
	Identity string
	Message  string
}

// ReadRequest decodes one request. Unknown command names return
// domain.ErrUnknownCommand with nothing after the name consumed.
func ReadRequest(r io.Reader) (Request, error) {
	name, err := ReadUTF(r)
	if err != nil {
		return Request{}, fmt.Errorf("read command: %w", err)
	}
	req := Request{Kind: domain.CommandKind(name)}
	if !req.Kind.Valid() {
		return req, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, name)
	}

	if req.ID, err = ReadInt32(r); err != nil {
		return req, fmt.Errorf("read %s id: %w", name, err)
	}

	switch req.Kind {
	case domain.CommandRegister, domain.CommandReconnect:
		if req.Port, err = ReadInt32(r); err != nil {
			return req, fmt.Errorf("read %s port: %w", name, err)
		}
		if req.Identity, err = ReadUTF(r); err != nil {
			return req, fmt.Errorf("read %s address: %w", name, err)
		}
	case domain.CommandMsend:
		if req.Message, err = ReadUTF(r); err != nil {
			return req, fmt.Errorf("read %s message: %w", name, err)
		}
	}
	return req, nil
}

// WriteRequest encodes req in a single write.
func WriteRequest(w io.Writer, req Request) error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCommand, req.Kind)
	}

	var buf bytes.Buffer
	if err := WriteUTF(&buf, string(req.Kind)); err != nil {
		return err
	}
	_ = WriteInt32(&buf, req.ID)

	switch req.Kind {
	case domain.CommandRegister, domain.CommandReconnect:
		_ = WriteInt32(&buf, req.Port)
		if err := WriteUTF(&buf, req.Identity); err != nil {
			return err
		}
	case domain.CommandMsend:
		if err := WriteUTF(&buf, req.Message); err != nil {
			return err
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Command converts the wire request into a domain command, extracting the
// routable address from the self-reported identity.
func (r Request) Command() (domain.Command, error) {
	cmd := domain.Command{
		Kind:    r.Kind,
		ID:      domain.ParticipantID(r.ID),
		Message: r.Message,
	}
	if r.Kind.HasEndpoint() {
		addr, err := ParseSelfReportedAddress(r.Identity)
		if err != nil {
			return cmd, err
		}
		cmd.Endpoint = domain.Endpoint{Address: addr, Port: r.Port}
	}
	return cmd, nil
}

// ParseSelfReportedAddress drops the fixed-width host label. The width is
// counted in UTF-16 code units, as participants count it.
func ParseSelfReportedAddress(identity string) (string, error) {
	units := utf16.Encode([]rune(identity))
	if len(units) < AddressLabelWidth {
		return "", fmt.Errorf("%w: %q", domain.ErrMalformedAddress, identity)
	}
	return string(utf16.Decode(units[AddressLabelWidth:])), nil
}

// Identity builds a self-reported address the coordinator slices back to
// address.
func Identity(address string) string {
	return identityLabel + address
}
