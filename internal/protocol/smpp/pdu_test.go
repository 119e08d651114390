package smpp

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(commandID, status, sequence uint32, body []byte) []byte {
	return MarshalPDU(commandID, status, sequence, body)
}

func TestReadPDU_HeaderOnly(t *testing.T) {
	// command_length == 16 means an empty body, which is legal for
	// enquire_link and unbind.
	buf := bytes.NewReader(frame(CmdEnquireLink, 0, 7, nil))

	hdr, body, err := ReadPDU(buf)
	require.NoError(t, err)
	assert.Equal(t, CmdEnquireLink, hdr.CommandID)
	assert.Equal(t, uint32(7), hdr.Sequence)
	assert.Equal(t, uint32(16), hdr.CommandLength)
	assert.Empty(t, body)
}

func TestReadPDU_WithBody(t *testing.T) {
	payload := []byte("hello\x00world")
	buf := bytes.NewReader(frame(CmdSubmitSM, 0, 42, payload))

	hdr, body, err := ReadPDU(buf)
	require.NoError(t, err)
	assert.Equal(t, CmdSubmitSM, hdr.CommandID)
	assert.Equal(t, payload, body)
}

func TestReadPDU_CleanEOF(t *testing.T) {
	_, _, err := ReadPDU(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestReadPDU_ShortHeader(t *testing.T) {
	_, _, err := ReadPDU(bytes.NewReader([]byte{0, 0, 0}))
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadPDU_ShortBody(t *testing.T) {
	full := frame(CmdSubmitSM, 0, 1, []byte("truncated body"))
	_, _, err := ReadPDU(bytes.NewReader(full[:len(full)-4]))
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestReadPDU_InvalidLength(t *testing.T) {
	var raw [16]byte
	binary.BigEndian.PutUint32(raw[0:4], 8) // below the header size
	_, _, err := ReadPDU(bytes.NewReader(raw[:]))
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestReadPDU_Oversized(t *testing.T) {
	var raw [16]byte
	binary.BigEndian.PutUint32(raw[0:4], MaxPDULength+1)
	_, _, err := ReadPDU(bytes.NewReader(raw[:]))
	assert.ErrorIs(t, err, ErrOversizedPDU)
}

func TestWritePDU_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDU(&buf, CmdDeliverSM, StatusOK, 99, []byte("abc")))

	hdr, body, err := ReadPDU(&buf)
	require.NoError(t, err)
	assert.Equal(t, CmdDeliverSM, hdr.CommandID)
	assert.Equal(t, StatusOK, hdr.CommandStatus)
	assert.Equal(t, uint32(99), hdr.Sequence)
	assert.Equal(t, []byte("abc"), body)
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "SUBMIT_SM", CommandName(CmdSubmitSM))
	assert.Equal(t, "ENQUIRE_LINK", CommandName(CmdEnquireLink))
	assert.Equal(t, "UNKNOWN_0x00000077", CommandName(0x77))
}

func TestParseBind(t *testing.T) {
	req, err := ParseBind(BuildBind("testuser", "testpass"))
	require.NoError(t, err)
	assert.Equal(t, "testuser", req.SystemID)
	assert.Equal(t, "testpass", req.Password)
}

func TestParseBind_Unterminated(t *testing.T) {
	_, err := ParseBind([]byte("no-terminator"))
	assert.Error(t, err)
}
