// Package roster holds the process-wide username -> session mapping
// that makes concurrent message fan-out safe. There is exactly one
// Roster per running server; it is threaded through constructors
// rather than kept as package-level state.
package roster

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Entry is the narrow view the roster needs of a logged-in session: a
// name to key it by, and a way to push one already-built frame to its
// socket. It exists so this package never has to import the session
// package that implements it.
type Entry interface {
	Username() string
	Send(frame []byte) error
}

// Roster is a readers-writer-locked map of username to Entry.
type Roster struct {
	mu       sync.RWMutex
	sessions map[string]Entry
}

// New returns an empty Roster.
func New() *Roster {
	return &Roster{sessions: make(map[string]Entry)}
}

// AddIfAbsent admits entry under username unless that name is already
// taken. It reports whether the admission succeeded.
func (r *Roster) AddIfAbsent(username string, entry Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.sessions[username]; taken {
		return false
	}
	r.sessions[username] = entry
	return true
}

// Remove erases username, reporting whether an entry was actually
// present.
func (r *Roster) Remove(username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, present := r.sessions[username]; !present {
		return false
	}
	delete(r.sessions, username)
	return true
}

// SendTo writes frame to dest's socket under the roster's read-lock,
// the one blocking call this package allows while holding the lock. It
// reports whether dest exists and the send succeeded.
func (r *Roster) SendTo(dest string, frame []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[dest]
	if !ok {
		return false
	}
	if err := entry.Send(frame); err != nil {
		logrus.WithError(err).WithField("dest", dest).Warn("[Roster] send failed")
		return false
	}
	return true
}

// BroadcastExcept writes frame to every session but sender. It returns
// true only if every recipient's send succeeded.
func (r *Roster) BroadcastExcept(sender string, frame []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allOK := true
	for username, entry := range r.sessions {
		if username == sender {
			continue
		}
		if err := entry.Send(frame); err != nil {
			logrus.WithError(err).WithField("dest", username).Warn("[Roster] broadcast send failed")
			allOK = false
		}
	}
	return allOK
}

// ListNames returns every currently logged-in username joined by ", ",
// in unspecified order, with a trailing NUL.
func (r *Roster) ListNames() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	return strings.Join(names, ", ") + "\x00"
}

// Len reports the number of logged-in sessions. Used by metrics, which
// takes the same read-lock as any other lookup.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
