// Package server bootstraps the TCP listener and runs the accept loop,
// handing each new connection to an acceptor.Acceptor.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"roomrelay/internal/acceptor"
)

// DefaultBacklog is the smallest accept backlog the protocol expects.
// Start does not pass it to the kernel: net.ListenConfig listens with
// the OS default backlog (on Linux, the kernel's somaxconn).
const DefaultBacklog = 5

// Server owns the listening socket and the set of in-flight connection
// goroutines.
type Server struct {
	address  string
	acceptor *acceptor.Acceptor
	listener net.Listener
	wg       sync.WaitGroup
	shutdown chan struct{}
}

// New returns a Server bound to address (host:port) once Start runs.
func New(address string, a *acceptor.Acceptor) *Server {
	return &Server{
		address:  address,
		acceptor: a,
		shutdown: make(chan struct{}),
	}
}

// Start binds and listens with SO_REUSEADDR (and, on Linux,
// SO_REUSEPORT) set and the OS default backlog, then runs the accept
// loop until Stop is called. It returns once the listener is closed.
func (s *Server) Start() error {
	lc := net.ListenConfig{
		Control: controlReuseAddrPort,
	}

	listener, err := lc.Listen(context.Background(), "tcp4", s.address)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.address, err)
	}
	s.listener = listener
	logrus.Infof("[Server] listening on %s", s.address)

	for {
		select {
		case <-s.shutdown:
			return nil
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return nil
			default:
				logrus.WithError(err).Warn("[Server] accept failed")
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.acceptor.Handle(conn)
		}()
	}
}

// Stop closes the listening socket and waits for in-flight connection
// goroutines. Each of those runs its session to completion, so Stop
// returns only after every admitted session has ended on its own EOF,
// error, or DISCONNECT; it does not interrupt or close them.
func (s *Server) Stop() {
	logrus.Info("[Server] shutting down")
	close(s.shutdown)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	logrus.Info("[Server] shutdown complete")
}

// controlReuseAddrPort sets SO_REUSEADDR and, on Linux, SO_REUSEPORT on
// the listening socket before bind.
func controlReuseAddrPort(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = setReusePort(int(fd))
	})
	if err != nil {
		return err
	}
	return sockErr
}
