package smpp

// BindRequest carries the credential fields of a bind_* body. The remaining
// fields (interface_version, addr_ton, addr_npi, address_range) play no role
// in authentication and are not parsed.
type BindRequest struct {
	SystemID string
	Password string
}

// ParseBind extracts system_id and password from a bind_transmitter,
// bind_receiver or bind_transceiver body. Both are NUL-terminated C-strings
// at the start of the body; a missing terminator on either field is a parse
// error.
func ParseBind(body []byte) (BindRequest, error) {
	systemID, off, err := readCString(body, 0)
	if err != nil {
		return BindRequest{}, err
	}
	password, _, err := readCString(body, off)
	if err != nil {
		return BindRequest{}, err
	}
	return BindRequest{SystemID: systemID, Password: password}, nil
}

// BuildBind serializes a minimal bind body (system_id, password, empty
// system_type, interface_version 0x34, TON/NPI 0, empty address_range).
// Used by tests and example clients.
func BuildBind(systemID, password string) []byte {
	body := make([]byte, 0, len(systemID)+len(password)+7)
	body = append(body, systemID...)
	body = append(body, 0)
	body = append(body, password...)
	body = append(body, 0)
	body = append(body, 0)          // system_type
	body = append(body, 0x34, 0, 0) // interface_version, addr_ton, addr_npi
	body = append(body, 0)          // address_range
	return body
}
