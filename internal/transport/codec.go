package transport

import (
	"encoding/binary"
	"fmt"
	"io"

	"labelpress/internal/services"
)

// Frame layout: magic | uint16 name length | name | uint32 page |
// uint32 payload length | payload. All integers big-endian.
var frameMagic = [4]byte{'L', 'P', 'M', '1'}

const (
	maxNameLen    = 1 << 10
	maxPayloadLen = 256 << 20
)

// WriteMessage frames msg onto w.
func WriteMessage(w io.Writer, msg Message) error {
	name := []byte(msg.Filename)
	if len(name) > maxNameLen {
		return services.Wrap(services.ErrDecode, "transport", "encode", fmt.Sprintf("filename exceeds %d bytes", maxNameLen), nil)
	}
	if msg.Page < 0 {
		return services.Wrap(services.ErrDecode, "transport", "encode", "negative page index", nil)
	}

	header := make([]byte, 0, len(frameMagic)+2+len(name)+8)
	header = append(header, frameMagic[:]...)
	header = binary.BigEndian.AppendUint16(header, uint16(len(name)))
	header = append(header, name...)
	header = binary.BigEndian.AppendUint32(header, uint32(msg.Page))
	header = binary.BigEndian.AppendUint32(header, uint32(len(msg.Payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(msg.Payload)
	return err
}

// ReadMessage reads one framed message from r. io.EOF at a frame boundary is
// returned as-is so callers can distinguish a clean close from a truncated
// frame; all other malformed input is tagged ErrDecode.
func ReadMessage(r io.Reader) (Message, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		if err == io.EOF {
			return Message{}, io.EOF
		}
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", "truncated frame header", err)
	}
	if magic != frameMagic {
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", fmt.Sprintf("bad magic % x", magic), nil)
	}

	var nameLen uint16
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", "truncated name length", err)
	}
	if nameLen > maxNameLen {
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", fmt.Sprintf("filename length %d exceeds limit", nameLen), nil)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", "truncated filename", err)
	}

	var page uint32
	if err := binary.Read(r, binary.BigEndian, &page); err != nil {
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", "truncated page index", err)
	}

	var payloadLen uint32
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", "truncated payload length", err)
	}
	if payloadLen > maxPayloadLen {
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", fmt.Sprintf("payload length %d exceeds limit", payloadLen), nil)
	}
	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, services.Wrap(services.ErrDecode, "transport", "decode", "truncated payload", err)
	}

	return Message{Filename: string(name), Page: int(page), Payload: payload}, nil
}
