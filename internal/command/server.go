package command

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ibs-source/recorder/internal/message"
	"github.com/ibs-source/recorder/internal/protocol"
	"github.com/ibs-source/recorder/internal/shutdown"
	"golang.org/x/sync/errgroup"
)

// socketWait bounds how long Accept/Read block before the outer loop
// rechecks shutdown.IsSignalled(), per spec §4.F.
const socketWait = 5 * time.Second

// readBufferSize is the per-read chunk size handed to protocol.Decoder.Feed.
const readBufferSize = 4096

// Server is the command_interface TCP connection pool: one accept loop
// plus one goroutine per connection, each driving its own
// protocol.Decoder. Follows worker_pool.go's panic-recovery-per-task,
// with an atomic count of live connections, adapted from a fixed-size task
// pool to one goroutine per live connection
// since each connection owns unbounded per-packet FSM state that
// cannot be time-sliced across a shared worker.
type Server struct {
	addr       string
	maxMessage uint32
	dispatch   protocol.Dispatch
	sd         *shutdown.Coordinator
	logf       Logf

	listener net.Listener
	group    *errgroup.Group
	groupCtx context.Context

	activeConns atomic.Int64
}

// NewServer builds a Server bound to addr (e.g. ":4150"), decoding
// frames up to maxMessage bytes and handing each decoded body to
// dispatch. logf, if non-nil, receives a Trace-level line per
// connection open/close tagged with a random connection ID, useful for
// correlating frames across a busy listener; a nil logf disables it.
func NewServer(addr string, maxMessage uint32, dispatch protocol.Dispatch, sd *shutdown.Coordinator, logf Logf) *Server {
	return &Server{addr: addr, maxMessage: maxMessage, dispatch: dispatch, sd: sd, logf: logf}
}

// ListenAndServe binds the listener and runs the accept loop until
// shutdown fires or the listener errors; it blocks until both the
// accept loop and every connection goroutine have returned.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln

	g, ctx := errgroup.WithContext(context.Background())
	s.group = g
	s.groupCtx = ctx

	g.Go(func() error {
		return s.acceptLoop(ctx)
	})

	err = g.Wait()
	_ = ln.Close()
	return err
}

// Close stops accepting new connections and unblocks the listener.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// ActiveConnections reports the current number of connections being
// served, for health/metrics reporting.
func (s *Server) ActiveConnections() int64 {
	return s.activeConns.Load()
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for !s.sd.IsSignalled() {
		if tl, ok := s.listener.(interface{ SetDeadline(time.Time) error }); ok {
			_ = tl.SetDeadline(time.Now().Add(socketWait))
		}
		conn, err := s.listener.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if s.sd.IsSignalled() {
				return nil
			}
			return err
		}

		s.activeConns.Add(1)
		s.group.Go(func() error {
			defer s.activeConns.Add(-1)
			s.handleConn(conn)
			return nil
		})
	}
	return nil
}

func (s *Server) connLogf(level message.Level, text string) {
	if s.logf != nil {
		s.logf(level, text)
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// handleConn drives one connection's decoder until shutdown, socket
// error, or orderly close, recovering from any panic in dispatch so a
// single misbehaving connection cannot take down the pool (mirrors
// executeTask's panic-recovery wrapper).
func (s *Server) handleConn(conn net.Conn) {
	connID := uuid.NewString()
	s.connLogf(message.LevelTrace, "connection "+connID+" opened from "+conn.RemoteAddr().String())
	defer s.connLogf(message.LevelTrace, "connection "+connID+" closed")
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			_ = r // connection-local panic; the deferred Close runs after this
		}
	}()

	dec := protocol.New(s.maxMessage)
	buf := make([]byte, readBufferSize)

	for !s.sd.IsSignalled() {
		_ = conn.SetReadDeadline(time.Now().Add(socketWait))
		n, err := conn.Read(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return // socket-level error or orderly close: disconnect
		}

		acks := dec.Feed(buf[:n], s.dispatch)
		for _, ack := range acks {
			if _, err := conn.Write(ack); err != nil {
				return
			}
		}
	}
}
