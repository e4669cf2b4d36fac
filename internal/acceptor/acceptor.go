// Package acceptor runs the login handshake for one freshly accepted
// TCP connection: it validates the LOGIN frame, admits the username to
// the roster, and hands the connection off to a session.Session.
package acceptor

import (
	"io"
	"net"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"roomrelay/internal/metrics"
	"roomrelay/internal/roster"
	"roomrelay/internal/session"
	"roomrelay/internal/wire"
)

// invalidUsernameMessage is the literal error payload (32 bytes,
// NUL-terminated) sent to a client whose chosen username is already
// taken.
const invalidUsernameMessage = "Invalid username to login with.\x00"

// loginPacketNumber is the packet_number shared by the pre-built
// login-response and the new Session's initial counter (§4.5).
const loginPacketNumber uint16 = 1

// Acceptor admits one connection at a time; it holds no per-connection
// state of its own.
type Acceptor struct {
	roster  *roster.Roster
	metrics *metrics.Collector
}

// New returns an Acceptor that admits sessions into r. metrics may be
// nil.
func New(r *roster.Roster, m *metrics.Collector) *Acceptor {
	return &Acceptor{roster: r, metrics: m}
}

// Handle runs the full login handshake on conn and, on success, the
// session's receive loop to completion. It always takes ownership of
// conn: on any path, conn ends up closed exactly once.
func (a *Acceptor) Handle(conn net.Conn) {
	connID := xid.New().String()
	log := logrus.WithField("conn", connID)

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Acceptor] recovered from panic: %v", r)
			conn.Close()
		}
	}()

	headerBuf := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(conn, headerBuf); err != nil {
		log.WithError(err).Debug("[Acceptor] short read or EOF on login header")
		conn.Close()
		return
	}

	h, err := wire.Parse(headerBuf)
	if err != nil {
		log.Warn("[Acceptor] bad header checksum on login, closing without reply")
		a.reject()
		conn.Close()
		return
	}

	if h.Version() != wire.ProtocolVersion {
		log.Warnf("[Acceptor] unsupported version %d, closing", h.Version())
		a.reject()
		conn.Close()
		return
	}

	if h.MessageType() != wire.TypeLogin {
		log.Warnf("[Acceptor] expected LOGIN, got %v, closing", h.MessageType())
		a.reject()
		conn.Close()
		return
	}

	username := h.SourceUsername()
	if username == "" {
		log.Warn("[Acceptor] empty username, closing")
		a.reject()
		conn.Close()
		return
	}
	log = log.WithField("user", username)

	// Built before the connection is handed to a new Session: once
	// admitted, the socket's only writer is that Session's own output
	// mutex, and this frame must already exist.
	loginEcho := wire.NewHeaderBuilder().
		PacketNumber(loginPacketNumber).
		DestUsername(username).
		Type(wire.TypeLogin).
		Build()

	var recorder session.Recorder
	if a.metrics != nil {
		recorder = a.metrics
	}
	sess := session.New(conn, connID, username, loginPacketNumber, a.roster, recorder)

	if !a.roster.AddIfAbsent(username, sess) {
		log.Info("[Acceptor] rejected duplicate username")
		a.sendInvalidUsername(conn, username)
		a.reject()
		conn.Close()
		return
	}

	if err := sess.Send(loginEcho[:]); err != nil {
		log.WithError(err).Warn("[Acceptor] failed to send login echo, rolling back admission")
		a.roster.Remove(username)
		a.reject()
		conn.Close()
		return
	}

	log.Info("[Acceptor] admitted")
	if a.metrics != nil {
		a.metrics.LoginAdmitted()
	}

	sess.Run()
}

func (a *Acceptor) sendInvalidUsername(conn net.Conn, username string) {
	payload := []byte(invalidUsernameMessage)
	raw := wire.NewHeaderBuilder().
		PacketNumber(loginPacketNumber).
		SourceUsername(wire.ServerUsername).
		DestUsername(username).
		Type(wire.TypeError).
		Payload(payload).
		Build()
	conn.Write(wire.Frame{Header: raw, Payload: payload}.Bytes())
}

func (a *Acceptor) reject() {
	if a.metrics != nil {
		a.metrics.LoginRejected()
	}
}
