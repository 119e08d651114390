// Package smpp implements the subset of the SMPP v3.4 wire protocol the
// gateway speaks: PDU framing, bind and submit_sm body parsing, and
// deliver_sm construction for delivery receipts.
//
// An SMPP PDU is a 16-byte header of four big-endian uint32 words
// (command_length, command_id, command_status, sequence_number) followed by
// command_length-16 body bytes. Framing is strict: a malformed header is not
// recoverable and callers are expected to drop the connection.
package smpp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Command IDs supported by the gateway. Responses carry the request ID with
// the high bit set.
const (
	CmdBindTransmitter     uint32 = 0x00000001
	CmdBindTransmitterResp uint32 = 0x80000001
	CmdBindReceiver        uint32 = 0x00000002
	CmdBindReceiverResp    uint32 = 0x80000002
	CmdSubmitSM            uint32 = 0x00000004
	CmdSubmitSMResp        uint32 = 0x80000004
	CmdDeliverSM           uint32 = 0x00000005
	CmdDeliverSMResp       uint32 = 0x80000005
	CmdUnbind              uint32 = 0x00000006
	CmdUnbindResp          uint32 = 0x80000006
	CmdBindTransceiver     uint32 = 0x00000009
	CmdBindTransceiverResp uint32 = 0x80000009
	CmdEnquireLink         uint32 = 0x00000015
	CmdEnquireLinkResp     uint32 = 0x80000015
)

// Command status codes the gateway emits.
const (
	StatusOK          uint32 = 0x00000000 // ESME_ROK
	StatusInvBindSts  uint32 = 0x00000004 // ESME_RINVBNDSTS
	StatusSysErr      uint32 = 0x00000008 // ESME_RSYSERR
	StatusInvDstAddr  uint32 = 0x0000000B // ESME_RINVDSTADR
	StatusInvPassword uint32 = 0x0000000E // ESME_RINVPASWD
)

const (
	// HeaderLength is the fixed SMPP PDU header size.
	HeaderLength = 16

	// MaxPDULength caps command_length. Anything larger is treated as a
	// framing error rather than an oversized message.
	MaxPDULength = 64 * 1024
)

var (
	// ErrShortRead reports a stream that ended mid-PDU.
	ErrShortRead = errors.New("smpp: short read inside PDU")

	// ErrInvalidLength reports a command_length below the header size.
	ErrInvalidLength = errors.New("smpp: command_length below header size")

	// ErrOversizedPDU reports a command_length above MaxPDULength.
	ErrOversizedPDU = errors.New("smpp: PDU exceeds maximum length")
)

// Header is the fixed 16-byte PDU header.
type Header struct {
	CommandLength uint32
	CommandID     uint32
	CommandStatus uint32
	Sequence      uint32
}

// CommandName returns a human-readable name for a command ID, for logging.
func CommandName(id uint32) string {
	switch id {
	case CmdBindTransmitter:
		return "BIND_TRANSMITTER"
	case CmdBindReceiver:
		return "BIND_RECEIVER"
	case CmdBindTransceiver:
		return "BIND_TRANSCEIVER"
	case CmdSubmitSM:
		return "SUBMIT_SM"
	case CmdDeliverSM:
		return "DELIVER_SM"
	case CmdDeliverSMResp:
		return "DELIVER_SM_RESP"
	case CmdUnbind:
		return "UNBIND"
	case CmdEnquireLink:
		return "ENQUIRE_LINK"
	default:
		return fmt.Sprintf("UNKNOWN_0x%08x", id)
	}
}

// ReadPDU reads one complete PDU from r.
//
// It reads exactly HeaderLength bytes, validates command_length, then reads
// the remaining body. A stream that ends mid-PDU yields ErrShortRead (a
// clean EOF before any header byte yields io.EOF so callers can tell an
// orderly disconnect from a truncated frame).
func ReadPDU(r io.Reader) (Header, []byte, error) {
	var raw [HeaderLength]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if err == io.EOF {
			return Header{}, nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, nil, ErrShortRead
		}
		return Header{}, nil, err
	}

	hdr := Header{
		CommandLength: binary.BigEndian.Uint32(raw[0:4]),
		CommandID:     binary.BigEndian.Uint32(raw[4:8]),
		CommandStatus: binary.BigEndian.Uint32(raw[8:12]),
		Sequence:      binary.BigEndian.Uint32(raw[12:16]),
	}

	if hdr.CommandLength < HeaderLength {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrInvalidLength, hdr.CommandLength)
	}
	if hdr.CommandLength > MaxPDULength {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrOversizedPDU, hdr.CommandLength)
	}

	bodyLen := hdr.CommandLength - HeaderLength
	if bodyLen == 0 {
		return hdr, nil, nil
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, nil, ErrShortRead
		}
		return Header{}, nil, err
	}
	return hdr, body, nil
}

// MarshalPDU serializes a PDU (header plus body) into a single byte slice.
// Writers to a shared stream must serialize calls externally; the session
// writer goroutine guarantees that.
func MarshalPDU(commandID, status, sequence uint32, body []byte) []byte {
	pdu := make([]byte, HeaderLength+len(body))
	binary.BigEndian.PutUint32(pdu[0:4], uint32(HeaderLength+len(body)))
	binary.BigEndian.PutUint32(pdu[4:8], commandID)
	binary.BigEndian.PutUint32(pdu[8:12], status)
	binary.BigEndian.PutUint32(pdu[12:16], sequence)
	copy(pdu[HeaderLength:], body)
	return pdu
}

// WritePDU emits the header and body in one logical write.
func WritePDU(w io.Writer, commandID, status, sequence uint32, body []byte) error {
	_, err := w.Write(MarshalPDU(commandID, status, sequence, body))
	return err
}

// readCString consumes a NUL-terminated C-string starting at off.
// Returns the string and the offset past the terminator.
func readCString(body []byte, off int) (string, int, error) {
	for i := off; i < len(body); i++ {
		if body[i] == 0 {
			return string(body[off:i]), i + 1, nil
		}
	}
	return "", 0, fmt.Errorf("smpp: unterminated C-string at offset %d", off)
}
