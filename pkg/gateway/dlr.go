package gateway

import (
	"time"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/internal/protocol/smpp"
	"github.com/smppware/hlrgate/pkg/hlr"
	"github.com/smppware/hlrgate/pkg/metrics"
)

// dlrTask is one pending DELIVRD receipt.
type dlrTask struct {
	messageID  string
	sourceAddr string
	destAddr   string
	record     hlr.Record
	submitTime time.Time
}

// dlrErrCode maps the HLR record to the DLR err field. Every invalid-class
// outcome carries "000": the receipt reports successful delivery, the
// diagnostic detail stays in the store.
func dlrErrCode(hlr.Record) string { return "000" }

// dlrReason labels the delivrd_total metric. Receipts are only emitted for
// invalid destinations, so the label is constant today; timeout and
// hlr_error exist for policy variants that accept on those paths.
func dlrReason(hlr.Record) string { return metrics.ReasonInvalidNumber }

// scheduleDLR spawns the deferred receipt goroutine. The task waits
// DLRDelay, then emits exactly one deliver_sm on this session. Session
// close or server shutdown cancels the wait; an unbound session at
// emission time drops the receipt with a metric.
func (s *Session) scheduleDLR(task dlrTask) {
	s.tasks.Add(1)
	metrics.ActiveTasks.Inc()

	go func() {
		defer s.tasks.Done()
		defer metrics.ActiveTasks.Dec()

		if delay := s.server.config.DLRDelay; delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-s.ctx.Done():
				logger.Warn("receipt cancelled by session close",
					logger.KeyClient, s.clientAddr,
					logger.KeyMessageID, task.messageID)
				return
			}
		} else if s.ctx.Err() != nil {
			return
		}

		s.emitDLR(task)
	}()
}

// emitDLR builds and sends the DELIVRD deliver_sm. Source and destination
// are swapped relative to the submit: the receipt travels from the looked
// up number back to the original sender.
func (s *Session) emitDLR(task dlrTask) {
	if sessionState(s.state.Load()) != stateBound {
		metrics.DLRDropped.Inc()
		logger.Warn("dropping receipt, session not bound",
			logger.KeyClient, s.clientAddr,
			logger.KeyMessageID, task.messageID,
			"state", sessionState(s.state.Load()).String())
		return
	}

	text := smpp.BuildDLRText(
		task.messageID,
		smpp.DLRStatDelivered,
		dlrErrCode(task.record),
		task.submitTime,
		time.Now(),
	)

	body := smpp.BuildDeliverSM(task.destAddr, task.sourceAddr, []byte(text))
	sequence := s.nextDeliverSeq()

	s.send(smpp.CmdDeliverSM, smpp.StatusOK, sequence, body)

	metrics.DelivrdTotal.WithLabelValues(dlrReason(task.record)).Inc()
	logger.Info("receipt sent",
		logger.KeyClient, s.clientAddr,
		logger.KeyMessageID, task.messageID,
		logger.KeyMSISDN, task.destAddr,
		logger.KeySequence, sequence,
		"dlr_length", len(text))
}
