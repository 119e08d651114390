package smpp

import (
	"fmt"
	"time"
)

// DLRStatDelivered is the stat field value for a delivered message.
const DLRStatDelivered = "DELIVRD"

// FormatDLRDate renders a timestamp in the YYMMDDhhmm form the DLR text
// fields use, in local time.
func FormatDLRDate(t time.Time) string {
	return t.Format("0601021504")
}

// BuildDLRText builds a delivery receipt text body in the de facto standard
// appendix-B format:
//
//	id:MSGID sub:001 dlvrd:000 submit date:YYMMDDhhmm done date:YYMMDDhhmm stat:STAT err:ERR text:
//
// submitDate is the time the submit_sm was accepted; doneDate the time the
// receipt is emitted.
func BuildDLRText(messageID, stat, errCode string, submitDate, doneDate time.Time) string {
	return fmt.Sprintf(
		"id:%s sub:001 dlvrd:000 submit date:%s done date:%s stat:%s err:%s text:",
		messageID,
		FormatDLRDate(submitDate),
		FormatDLRDate(doneDate),
		stat,
		errCode,
	)
}
