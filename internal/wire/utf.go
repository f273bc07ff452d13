package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
)

// MaxUTFLen is the largest encoded text a 2-byte length prefix can carry.
const MaxUTFLen = 0xFFFF

var (
	ErrStringTooLong = errors.New("wire: encoded string exceeds 65535 bytes")
	ErrMalformedUTF  = errors.New("wire: malformed modified UTF-8")
	ErrShortRead     = errors.New("wire: short read")
)

// WriteUTF writes s as a length-prefixed modified UTF-8 string.
func WriteUTF(w io.Writer, s string) error {
	b, err := EncodeUTF(s)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// EncodeUTF returns the length-prefixed modified UTF-8 encoding of s.
// NUL is encoded as two bytes and supplementary characters as a surrogate
// pair of three-byte sequences.
func EncodeUTF(s string) ([]byte, error) {
	units := utf16.Encode([]rune(s))

	n := 0
	for _, c := range units {
		n += unitLen(c)
	}
	if n > MaxUTFLen {
		return nil, fmt.Errorf("%w: %d", ErrStringTooLong, n)
	}

	buf := make([]byte, 2, 2+n)
	binary.BigEndian.PutUint16(buf, uint16(n))
	for _, c := range units {
		switch unitLen(c) {
		case 1:
			buf = append(buf, byte(c))
		case 2:
			buf = append(buf,
				0xC0|byte(c>>6&0x1F),
				0x80|byte(c&0x3F))
		default:
			buf = append(buf,
				0xE0|byte(c>>12&0x0F),
				0x80|byte(c>>6&0x3F),
				0x80|byte(c&0x3F))
		}
	}
	return buf, nil
}

// ReadUTF reads one length-prefixed modified UTF-8 string.
func ReadUTF(r io.Reader) (string, error) {
	var hdr [2]byte
	if err := readFull(r, hdr[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(hdr[:])

	body := make([]byte, n)
	if err := readFull(r, body); err != nil {
		return "", err
	}
	return DecodeUTF(body)
}

// DecodeUTF decodes a modified UTF-8 body (without its length prefix).
func DecodeUTF(b []byte) (string, error) {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c&0x80 == 0:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("%w: bad 2-byte sequence at %d", ErrMalformedUTF, i)
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", fmt.Errorf("%w: bad 3-byte sequence at %d", ErrMalformedUTF, i)
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", fmt.Errorf("%w: bad lead byte 0x%02x at %d", ErrMalformedUTF, c, i)
		}
	}
	return string(utf16.Decode(units)), nil
}

// WriteInt32 writes v as 4 big-endian bytes.
func WriteInt32(w io.Writer, v int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	_, err := w.Write(b[:])
	return err
}

// ReadInt32 reads 4 big-endian bytes.
func ReadInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if err := readFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func unitLen(c uint16) int {
	switch {
	case c >= 0x0001 && c <= 0x007F:
		return 1
	case c > 0x07FF:
		return 3
	default:
		return 2
	}
}

func readFull(r io.Reader, b []byte) error {
	if _, err := io.ReadFull(r, b); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrShortRead
		}
		return err
	}
	return nil
}
