package smpp

import "fmt"

// SubmitSM carries the fields of a submit_sm body the gateway acts on.
// Everything else (service_type, TON/NPI, scheduling, data_coding and any
// optional TLVs after the message) is skipped over but not retained.
type SubmitSM struct {
	SourceAddr      string
	DestinationAddr string
	ShortMessage    []byte
}

// ParseSubmitSM walks a submit_sm body per SMPP v3.4 §4.4.1.
//
// Layout: service_type (C-string), source TON/NPI (2 bytes), source_addr
// (C-string), dest TON/NPI (2 bytes), destination_addr (C-string),
// esm_class/protocol_id/priority_flag (3 bytes), schedule_delivery_time and
// validity_period (C-strings), registered_delivery/replace_if_present/
// data_coding/sm_default_msg_id (4 bytes), sm_length (1 byte), then
// sm_length message bytes. Trailing TLVs are ignored.
func ParseSubmitSM(body []byte) (SubmitSM, error) {
	off := 0

	// service_type
	_, off, err := readCString(body, off)
	if err != nil {
		return SubmitSM{}, fmt.Errorf("submit_sm service_type: %w", err)
	}

	// source_addr_ton, source_addr_npi
	if off+2 > len(body) {
		return SubmitSM{}, fmt.Errorf("submit_sm truncated before source address")
	}
	off += 2

	sourceAddr, off, err := readCString(body, off)
	if err != nil {
		return SubmitSM{}, fmt.Errorf("submit_sm source_addr: %w", err)
	}

	// dest_addr_ton, dest_addr_npi
	if off+2 > len(body) {
		return SubmitSM{}, fmt.Errorf("submit_sm truncated before destination address")
	}
	off += 2

	destAddr, off, err := readCString(body, off)
	if err != nil {
		return SubmitSM{}, fmt.Errorf("submit_sm destination_addr: %w", err)
	}

	// esm_class, protocol_id, priority_flag
	if off+3 > len(body) {
		return SubmitSM{}, fmt.Errorf("submit_sm truncated at esm_class")
	}
	off += 3

	// schedule_delivery_time, validity_period
	if _, off, err = readCString(body, off); err != nil {
		return SubmitSM{}, fmt.Errorf("submit_sm schedule_delivery_time: %w", err)
	}
	if _, off, err = readCString(body, off); err != nil {
		return SubmitSM{}, fmt.Errorf("submit_sm validity_period: %w", err)
	}

	// registered_delivery, replace_if_present_flag, data_coding,
	// sm_default_msg_id, then sm_length
	if off+5 > len(body) {
		return SubmitSM{}, fmt.Errorf("submit_sm truncated at sm_length")
	}
	off += 4
	smLength := int(body[off])
	off++

	if off+smLength > len(body) {
		return SubmitSM{}, fmt.Errorf("submit_sm short_message truncated: want %d bytes, have %d", smLength, len(body)-off)
	}

	msg := make([]byte, smLength)
	copy(msg, body[off:off+smLength])

	return SubmitSM{
		SourceAddr:      sourceAddr,
		DestinationAddr: destAddr,
		ShortMessage:    msg,
	}, nil
}

// BuildSubmitSM serializes a submit_sm body with default TON/NPI (1/1) and
// no scheduling. The counterpart of ParseSubmitSM, used by tests and the
// example client.
func BuildSubmitSM(req SubmitSM) []byte {
	body := make([]byte, 0, 32+len(req.SourceAddr)+len(req.DestinationAddr)+len(req.ShortMessage))
	body = append(body, 0)    // service_type
	body = append(body, 1, 1) // source_addr_ton, source_addr_npi
	body = append(body, req.SourceAddr...)
	body = append(body, 0)
	body = append(body, 1, 1) // dest_addr_ton, dest_addr_npi
	body = append(body, req.DestinationAddr...)
	body = append(body, 0)
	body = append(body, 0, 0, 0) // esm_class, protocol_id, priority_flag
	body = append(body, 0)       // schedule_delivery_time
	body = append(body, 0)       // validity_period
	body = append(body, 1, 0, 0, 0)
	body = append(body, byte(len(req.ShortMessage)))
	body = append(body, req.ShortMessage...)
	return body
}

// BuildSubmitSMResp serializes a submit_sm_resp body: the message_id as a
// C-string, empty when the submit was rejected.
func BuildSubmitSMResp(messageID string) []byte {
	body := make([]byte, 0, len(messageID)+1)
	body = append(body, messageID...)
	body = append(body, 0)
	return body
}
