package gateway

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/internal/protocol/smpp"
	"github.com/smppware/hlrgate/pkg/hlr"
	"github.com/smppware/hlrgate/pkg/metrics"
)

// newMessageID returns a 16-hex-character message id. Short enough for the
// submit_sm_resp body and the DLR id field, unique enough to never collide
// in practice.
func newMessageID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:8])
}

// handleSubmitSM runs the submit pipeline for one message:
//
//	resolve destination -> valid: reject with ESME_RINVDSTADR
//	                    -> invalid: accept with ESME_ROK, schedule DELIVRD
//	                    -> HLR timeout/error: ESME_RSYSERR
//
// The submit_sm_resp always echoes the peer's sequence number. Runs on a
// worker goroutine; everything it sends goes through the session writer.
func (s *Session) handleSubmitSM(sequence uint32, req smpp.SubmitSM) {
	start := time.Now()
	messageID := newMessageID()

	ctx := logger.WithContext(s.ctx, &logger.LogContext{
		Client:    s.clientAddr,
		SystemID:  s.systemID,
		MSISDN:    req.DestinationAddr,
		MessageID: messageID,
	})

	logger.InfoCtx(ctx, "submit_sm received",
		"source", req.SourceAddr,
		logger.KeySequence, sequence,
		"message_length", len(req.ShortMessage))

	defer func() {
		metrics.SubmitProcessing.Observe(time.Since(start).Seconds())
	}()

	record, err := s.server.services.Resolver.Resolve(ctx, req.DestinationAddr, s.clientIP)
	if err != nil {
		metrics.SubmitTotal.WithLabelValues(metrics.SubmitRejected).Inc()
		if errors.Is(err, hlr.ErrTimeout) {
			logger.WarnCtx(ctx, "submit_sm rejected, hlr timeout")
		} else {
			logger.ErrorCtx(ctx, "submit_sm failed", "error", err)
		}
		s.send(smpp.CmdSubmitSMResp, smpp.StatusSysErr, sequence, smpp.BuildSubmitSMResp(""))
		return
	}

	if record.Classification() == hlr.ClassValid {
		metrics.SubmitTotal.WithLabelValues(metrics.SubmitRejected).Inc()
		logger.InfoCtx(ctx, "submit_sm rejected, destination is live",
			"hlr_error", record.ErrorCode(),
			"hlr_status", record.StatusCode())
		s.send(smpp.CmdSubmitSMResp, smpp.StatusInvDstAddr, sequence, smpp.BuildSubmitSMResp(""))
		return
	}

	metrics.SubmitTotal.WithLabelValues(metrics.SubmitAccepted).Inc()
	logger.InfoCtx(ctx, "submit_sm accepted, scheduling receipt",
		"hlr_error", record.ErrorCode(),
		"hlr_status", record.StatusCode())

	// The response is queued before the receipt task exists, so even with a
	// zero delay the writer emits submit_sm_resp ahead of the deliver_sm.
	s.send(smpp.CmdSubmitSMResp, smpp.StatusOK, sequence, smpp.BuildSubmitSMResp(messageID))

	s.scheduleDLR(dlrTask{
		messageID:  messageID,
		sourceAddr: req.SourceAddr,
		destAddr:   req.DestinationAddr,
		record:     record,
		submitTime: time.Now(),
	})
}
