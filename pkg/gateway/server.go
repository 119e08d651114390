package gateway

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smppware/hlrgate/internal/logger"
	"github.com/smppware/hlrgate/pkg/metrics"
)

// TimeoutsConfig groups the server's timeout knobs.
type TimeoutsConfig struct {
	// Idle is the maximum gap between PDUs before the session is closed.
	// 0 disables the idle timeout.
	Idle time.Duration `mapstructure:"idle" validate:"min=0"`

	// Shutdown bounds the wait for active sessions during graceful
	// shutdown. Remaining sessions are force-closed after it expires.
	Shutdown time.Duration `mapstructure:"shutdown" validate:"required,gt=0"`
}

// Config holds the SMPP server configuration.
type Config struct {
	// Host is the bind address. Empty binds all interfaces.
	Host string `mapstructure:"host"`

	// Port is the SMPP listen port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// SystemID and Password are the credentials every bind is checked
	// against.
	SystemID string `mapstructure:"system_id" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`

	// MaxConnections limits concurrent sessions. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// MaxRequestsPerConnection bounds concurrent submit handlers on one
	// session so a burst cannot spawn unbounded goroutines.
	MaxRequestsPerConnection int `mapstructure:"max_requests_per_connection" validate:"min=0"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts"`

	// DLRDelay is how long an accepted message waits before its DELIVRD
	// receipt is emitted.
	DLRDelay time.Duration `mapstructure:"dlr_delay"`

	// FlushTimeout is the ceiling a DeliverSM (or any large write) waits
	// for the socket write before continuing asynchronously.
	FlushTimeout time.Duration `mapstructure:"flush_timeout"`
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 2776
	}
	if c.SystemID == "" {
		c.SystemID = "testuser"
	}
	if c.Password == "" {
		c.Password = "testpass"
	}
	if c.MaxRequestsPerConnection == 0 {
		c.MaxRequestsPerConnection = 100
	}
	if c.Timeouts.Shutdown == 0 {
		c.Timeouts.Shutdown = 30 * time.Second
	}
	if c.FlushTimeout == 0 {
		c.FlushTimeout = 30 * time.Millisecond
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.Timeouts.Shutdown <= 0 {
		return fmt.Errorf("invalid timeouts.shutdown %v: must be > 0", c.Timeouts.Shutdown)
	}
	return nil
}

// Server owns the SMPP listener and the lifecycle of all sessions.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new sessions)
//  3. shutdownCtx cancelled (aborts in-flight lookups and pending receipts)
//  4. Wait for sessions to drain up to Timeouts.Shutdown
//  5. Force-close the stragglers
type Server struct {
	config   Config
	services *Services

	listener   net.Listener
	listenerMu sync.RWMutex

	// listenerReady is closed once the listener is bound. Tests use it
	// to synchronize with startup.
	listenerReady chan struct{}

	// shutdown is closed by initiateShutdown, watched by the accept loop.
	shutdown     chan struct{}
	shutdownOnce sync.Once

	// shutdownCtx is the parent of every session context.
	shutdownCtx    context.Context
	cancelSessions context.CancelFunc

	// connSemaphore caps concurrent sessions when MaxConnections > 0.
	connSemaphore chan struct{}

	activeConns sync.WaitGroup
	connCount   atomic.Int32

	// activeSessions maps peer address to *Session for forced closure.
	activeSessions sync.Map
}

// NewServer builds a server. Panics on invalid configuration, which is a
// programmer error: config is validated again at load time.
func NewServer(config Config, services *Services) *Server {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("invalid SMPP config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
	}

	shutdownCtx, cancelSessions := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		services:       services,
		listenerReady:  make(chan struct{}),
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelSessions: cancelSessions,
		connSemaphore:  connSemaphore,
	}
}

// Serve accepts sessions until the context is cancelled, then shuts down
// gracefully. Returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create SMPP listener on port %d: %w", s.config.Port, err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	close(s.listenerReady)

	logger.Info("SMPP server listening",
		"address", listener.Addr().String(),
		"max_connections", s.config.MaxConnections)

	go func() {
		<-ctx.Done()
		logger.Info("SMPP shutdown signal received", "error", ctx.Err())
		s.initiateShutdown()
	}()

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("error accepting SMPP connection", "error", err)
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)
		metrics.ActiveConnections.Inc()

		session := newSession(s, tcpConn)
		addr := tcpConn.RemoteAddr().String()
		s.activeSessions.Store(addr, session)

		logger.Info("client connected",
			logger.KeyClient, addr,
			"active", s.connCount.Load())

		go func() {
			defer func() {
				s.activeSessions.Delete(addr)
				s.activeConns.Done()
				s.connCount.Add(-1)
				metrics.ActiveConnections.Dec()
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				logger.Info("client disconnected",
					logger.KeyClient, addr,
					"active", s.connCount.Load())
			}()

			session.serve()
		}()
	}
}

// initiateShutdown stops accepting sessions and cancels all session
// contexts. Safe to call more than once.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("error closing SMPP listener", "error", err)
			}
		}
		s.listenerMu.Unlock()

		// Unblock sessions sitting in a PDU read so they notice the
		// cancelled context promptly.
		deadline := time.Now().Add(100 * time.Millisecond)
		s.activeSessions.Range(func(_, value any) bool {
			value.(*Session).setReadDeadline(deadline)
			return true
		})

		s.cancelSessions()
	})
}

// gracefulShutdown waits for sessions to drain, then force-closes the rest.
func (s *Server) gracefulShutdown() error {
	active := s.connCount.Load()
	logger.Info("SMPP graceful shutdown: waiting for sessions",
		"active", active, "timeout", s.config.Timeouts.Shutdown)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("SMPP graceful shutdown complete")
		return nil
	case <-time.After(s.config.Timeouts.Shutdown):
		remaining := s.connCount.Load()
		logger.Warn("SMPP shutdown timeout exceeded, forcing closure", "active", remaining)
		s.activeSessions.Range(func(_, value any) bool {
			value.(*Session).close()
			return true
		})
		return fmt.Errorf("SMPP shutdown timeout: %d sessions force-closed", remaining)
	}
}

// Stop initiates shutdown and waits for sessions up to the context
// deadline. Safe to call concurrently with Serve.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the listener address, blocking until the listener is bound.
func (s *Server) Addr() string {
	<-s.listenerReady
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ActiveSessions returns the number of live sessions.
func (s *Server) ActiveSessions() int32 {
	return s.connCount.Load()
}
