package smpp

// EsmClassDeliveryReceipt marks a deliver_sm as an SMSC delivery receipt.
const EsmClassDeliveryReceipt = 0x04

// BuildDeliverSM serializes a deliver_sm body carrying a delivery receipt.
//
// Fixed fields: TON/NPI 1/1 (international, ISDN) on both addresses,
// esm_class 0x04, registered_delivery 1, data_coding 0 (SMSC default
// alphabet). The text is expected to be ASCII DLR text from BuildDLRText.
func BuildDeliverSM(sourceAddr, destinationAddr string, shortMessage []byte) []byte {
	body := make([]byte, 0, 24+len(sourceAddr)+len(destinationAddr)+len(shortMessage))
	body = append(body, 0)    // service_type
	body = append(body, 1, 1) // source_addr_ton, source_addr_npi
	body = append(body, sourceAddr...)
	body = append(body, 0)
	body = append(body, 1, 1) // dest_addr_ton, dest_addr_npi
	body = append(body, destinationAddr...)
	body = append(body, 0)
	body = append(body, EsmClassDeliveryReceipt)
	body = append(body, 0, 0) // protocol_id, priority_flag
	body = append(body, 0)    // schedule_delivery_time
	body = append(body, 0)    // validity_period
	body = append(body, 1, 0) // registered_delivery, replace_if_present_flag
	body = append(body, 0)    // data_coding
	body = append(body, 0)    // sm_default_msg_id
	body = append(body, byte(len(shortMessage)))
	body = append(body, shortMessage...)
	return body
}
