// Package identity maps authenticated identities to their live connection and
// to the seat they currently hold.
//
// Bindings is not safe for concurrent use. The game service owns one and only
// touches it while holding its action lock.
package identity

// Assignment locates the seat an identity holds
type Assignment struct {
	SessionID string
	SeatID    string
}

// Bindings tracks identity to connection and identity to seat mappings
type Bindings struct {
	connByIdentity map[string]string
	identityByConn map[string]string
	seats          map[string]Assignment
}

// NewBindings creates empty bindings
func NewBindings() *Bindings {
	return &Bindings{
		connByIdentity: make(map[string]string),
		identityByConn: make(map[string]string),
		seats:          make(map[string]Assignment),
	}
}

// Bind attaches connID to identity and returns the connection it replaced,
// or "" when there was none. Any identity previously bound to connID is
// detached.
func (b *Bindings) Bind(identity, connID string) string {
	if other, ok := b.identityByConn[connID]; ok && other != identity {
		delete(b.connByIdentity, other)
	}

	previous := b.connByIdentity[identity]
	if previous != "" && previous != connID {
		delete(b.identityByConn, previous)
	}
	if previous == connID {
		previous = ""
	}

	b.connByIdentity[identity] = connID
	b.identityByConn[connID] = identity
	return previous
}

// Unbind removes the binding only if identity is still bound to connID
func (b *Bindings) Unbind(identity, connID string) bool {
	if b.connByIdentity[identity] != connID {
		return false
	}
	delete(b.connByIdentity, identity)
	delete(b.identityByConn, connID)
	return true
}

// Connection returns the live connection for identity
func (b *Bindings) Connection(identity string) (string, bool) {
	connID, ok := b.connByIdentity[identity]
	return connID, ok
}

// Identity returns the identity bound to connID
func (b *Bindings) Identity(connID string) (string, bool) {
	identity, ok := b.identityByConn[connID]
	return identity, ok
}

// SetSeat records the seat held by identity
func (b *Bindings) SetSeat(identity string, a Assignment) {
	b.seats[identity] = a
}

// Seat returns the seat held by identity
func (b *Bindings) Seat(identity string) (Assignment, bool) {
	a, ok := b.seats[identity]
	return a, ok
}

// ClearSeat forgets the seat held by identity
func (b *Bindings) ClearSeat(identity string) {
	delete(b.seats, identity)
}

// ClearSession forgets every seat in sessionID and returns the identities
// that held them
func (b *Bindings) ClearSession(sessionID string) []string {
	var cleared []string
	for identity, a := range b.seats {
		if a.SessionID == sessionID {
			delete(b.seats, identity)
			cleared = append(cleared, identity)
		}
	}
	return cleared
}

// Connections returns the number of bound connections
func (b *Bindings) Connections() int {
	return len(b.connByIdentity)
}
