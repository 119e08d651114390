package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/internal/protocol/smpp"
)

// sessionState tracks the SMPP session lifecycle.
type sessionState uint32

const (
	// stateOpen: TCP established, no successful bind yet.
	stateOpen sessionState = iota

	// stateBound: authenticated, submit_sm accepted.
	stateBound

	// stateUnbound: peer sent unbind; the connection stays up but
	// submits are refused and receipts are dropped.
	stateUnbound

	// stateClosed: connection torn down.
	stateClosed
)

func (st sessionState) String() string {
	switch st {
	case stateOpen:
		return "open"
	case stateBound:
		return "bound"
	case stateUnbound:
		return "unbound"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// writeRequest is one PDU queued for the writer goroutine. done, when
// non-nil, is closed after the write completes so the sender can wait for
// the flush with a ceiling.
type writeRequest struct {
	data []byte
	done chan struct{}
}

// Session is one SMPP connection.
//
// Concurrency layout: the serve loop reads PDUs sequentially and handles
// everything except submit_sm inline. Submits run in goroutines bounded by
// requestSem, so an enquire_link arriving behind a slow HLR lookup is still
// answered immediately. All writes funnel through the single writer
// goroutine; the socket has exactly one writing goroutine for its lifetime.
type Session struct {
	server *Server
	conn   net.Conn

	clientAddr string
	clientIP   string

	state atomic.Uint32

	// systemID is set before the state moves to bound and read only
	// after observing that state.
	systemID string

	// deliverSeq numbers unsolicited deliver_sm PDUs, starting at 1.
	deliverSeq atomic.Uint32

	writeCh    chan writeRequest
	writerDone chan struct{}
	requestSem chan struct{}

	// tasks tracks submit handlers and pending receipt goroutines.
	tasks sync.WaitGroup

	ctx          context.Context
	cancel       context.CancelFunc
	teardownOnce sync.Once
}

func newSession(server *Server, conn net.Conn) *Session {
	ctx, cancel := context.WithCancel(server.shutdownCtx)

	addr := conn.RemoteAddr().String()
	ip := addr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		ip = host
	}

	return &Session{
		server:     server,
		conn:       conn,
		clientAddr: addr,
		clientIP:   ip,
		writeCh:    make(chan writeRequest, 64),
		writerDone: make(chan struct{}),
		requestSem: make(chan struct{}, server.config.MaxRequestsPerConnection),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// serve runs the read loop until the peer disconnects, a framing error
// occurs, or the server shuts down.
func (s *Session) serve() {
	defer s.teardown()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in SMPP session",
				logger.KeyClient, s.clientAddr,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	go s.writer()

	for {
		if idle := s.server.config.Timeouts.Idle; idle > 0 {
			s.conn.SetReadDeadline(time.Now().Add(idle))
		}

		hdr, body, err := smpp.ReadPDU(s.conn)
		if err != nil {
			s.logReadError(err)
			return
		}

		logger.Debug("pdu received",
			logger.KeyClient, s.clientAddr,
			"command", smpp.CommandName(hdr.CommandID),
			logger.KeySequence, hdr.Sequence)

		if !s.dispatch(hdr, body) {
			return
		}
	}
}

func (s *Session) logReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("peer disconnected", logger.KeyClient, s.clientAddr)
	case s.ctx.Err() != nil:
		logger.Debug("session read aborted by shutdown", logger.KeyClient, s.clientAddr)
	case errors.Is(err, net.ErrClosed):
		logger.Debug("session socket closed", logger.KeyClient, s.clientAddr)
	default:
		logger.Warn("closing session on read error",
			logger.KeyClient, s.clientAddr, "error", err)
	}
}

// dispatch handles one PDU. Returns false when the session must close.
func (s *Session) dispatch(hdr smpp.Header, body []byte) bool {
	switch hdr.CommandID {
	case smpp.CmdBindTransmitter, smpp.CmdBindReceiver, smpp.CmdBindTransceiver:
		return s.handleBind(hdr, body)

	case smpp.CmdUnbind:
		s.handleUnbind(hdr)
		return true

	case smpp.CmdEnquireLink:
		// Fast path: the peer blocks traffic while waiting for this
		// response, so it is queued without any flush wait.
		s.send(smpp.CmdEnquireLinkResp, smpp.StatusOK, hdr.Sequence, nil)
		return true

	case smpp.CmdSubmitSM:
		return s.dispatchSubmitSM(hdr, body)

	case smpp.CmdDeliverSMResp:
		logger.Debug("deliver_sm_resp received",
			logger.KeyClient, s.clientAddr,
			logger.KeySequence, hdr.Sequence,
			"status", hdr.CommandStatus)
		return true

	default:
		logger.Debug("ignoring unsupported command",
			logger.KeyClient, s.clientAddr,
			"command", smpp.CommandName(hdr.CommandID))
		return true
	}
}

// handleBind authenticates the peer. Any of the three bind variants is
// accepted against the same credentials; a failed bind is answered with
// ESME_RINVPASWD and the session closed.
func (s *Session) handleBind(hdr smpp.Header, body []byte) bool {
	respID := hdr.CommandID | 0x80000000

	req, err := smpp.ParseBind(body)
	if err != nil {
		logger.Warn("malformed bind, closing session",
			logger.KeyClient, s.clientAddr, "error", err)
		return false
	}

	if !s.authenticate(req) {
		logger.Warn("bind rejected",
			logger.KeyClient, s.clientAddr,
			logger.KeySystemID, req.SystemID)
		s.send(respID, smpp.StatusInvPassword, hdr.Sequence, nil)
		return false
	}

	s.systemID = req.SystemID
	s.state.Store(uint32(stateBound))

	logger.Info("bind accepted",
		logger.KeyClient, s.clientAddr,
		logger.KeySystemID, req.SystemID,
		"command", smpp.CommandName(hdr.CommandID))

	s.send(respID, smpp.StatusOK, hdr.Sequence, []byte("SMPPGateway\x00"))
	return true
}

// authenticate compares credentials in constant time.
func (s *Session) authenticate(req smpp.BindRequest) bool {
	cfg := s.server.config
	idOK := subtle.ConstantTimeCompare([]byte(req.SystemID), []byte(cfg.SystemID))
	pwOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(cfg.Password))
	return idOK&pwOK == 1
}

func (s *Session) handleUnbind(hdr smpp.Header) {
	logger.Info("unbind received", logger.KeyClient, s.clientAddr)
	s.state.Store(uint32(stateUnbound))
	s.send(smpp.CmdUnbindResp, smpp.StatusOK, hdr.Sequence, nil)
}

// dispatchSubmitSM validates state, parses the body, and hands the submit
// to a bounded worker goroutine so the read loop stays responsive.
func (s *Session) dispatchSubmitSM(hdr smpp.Header, body []byte) bool {
	if sessionState(s.state.Load()) != stateBound {
		s.send(smpp.CmdSubmitSMResp, smpp.StatusInvBindSts, hdr.Sequence, nil)
		return true
	}

	req, err := smpp.ParseSubmitSM(body)
	if err != nil {
		logger.Warn("malformed submit_sm, closing session",
			logger.KeyClient, s.clientAddr,
			logger.KeySequence, hdr.Sequence,
			"error", err)
		return false
	}

	select {
	case s.requestSem <- struct{}{}:
	case <-s.ctx.Done():
		return false
	}

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer func() { <-s.requestSem }()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in submit handler",
					logger.KeyClient, s.clientAddr,
					"panic", r,
					"stack", string(debug.Stack()))
				s.send(smpp.CmdSubmitSMResp, smpp.StatusSysErr, hdr.Sequence, []byte{0})
			}
		}()

		s.handleSubmitSM(hdr.Sequence, req)
	}()
	return true
}

// writer owns the socket write side. It drains writeCh until close()
// closes the channel, so responses queued before teardown still reach the
// peer. After the first write failure remaining PDUs are discarded but
// their done channels are still closed, keeping senders unblocked.
func (s *Session) writer() {
	defer close(s.writerDone)

	failed := false
	for req := range s.writeCh {
		if !failed {
			if _, err := s.conn.Write(req.data); err != nil {
				logger.Debug("session write failed",
					logger.KeyClient, s.clientAddr, "error", err)
				failed = true
				s.cancel()
				s.conn.Close()
			}
		}
		if req.done != nil {
			close(req.done)
		}
	}
}

// send queues one PDU. deliver_sm and large bodies wait for the write up
// to the flush ceiling, then continue asynchronously; everything else is
// fire-and-forget.
func (s *Session) send(commandID, status, sequence uint32, body []byte) {
	pdu := smpp.MarshalPDU(commandID, status, sequence, body)

	var done chan struct{}
	if commandID == smpp.CmdDeliverSM || len(body) >= 100 {
		done = make(chan struct{})
	}

	select {
	case s.writeCh <- writeRequest{data: pdu, done: done}:
	case <-s.ctx.Done():
		return
	}

	if done != nil {
		timer := time.NewTimer(s.server.config.FlushTimeout)
		defer timer.Stop()
		select {
		case <-done:
		case <-timer.C:
		case <-s.ctx.Done():
		}
	}
}

// nextDeliverSeq allocates the next sequence number for an unsolicited
// deliver_sm.
func (s *Session) nextDeliverSeq() uint32 {
	return s.deliverSeq.Add(1)
}

// setReadDeadline interrupts a blocked PDU read, used during shutdown.
func (s *Session) setReadDeadline(t time.Time) {
	s.conn.SetReadDeadline(t)
}

// close forces the session shut from outside the read loop: it aborts
// pending work and cuts the socket, which makes the blocked read return
// and the serve goroutine run teardown. Safe to call concurrently.
func (s *Session) close() {
	s.cancel()
	s.conn.Close()
}

// teardown finishes the session. Only the serve goroutine runs it, which
// guarantees no new PDU is queued after writeCh closes. Ordering matters:
//
//  1. cancel the context so submit handlers and pending receipts abort
//  2. wait for them, so no sender touches writeCh again
//  3. close writeCh so the writer flushes what is already queued
//  4. give the flush a bounded window, then cut the socket
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.state.Store(uint32(stateClosed))
		s.cancel()
		s.tasks.Wait()

		close(s.writeCh)
		flush := time.NewTimer(10 * s.server.config.FlushTimeout)
		defer flush.Stop()
		select {
		case <-s.writerDone:
		case <-flush.C:
		}

		s.conn.Close()
		<-s.writerDone
	})
}
