package registry

import "sync"

// Registry is the single authoritative userID ⇄ connectionID mapping for the
// process. Registration is last-connect-wins; unregistration keys off the
// connection id so a late disconnect for a superseded connection can never
// remove a newer mapping for the same user.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]string // userID -> connID
	byConn map[string]string // connID -> userID
}

func New() *Registry {
	return &Registry{
		byUser: make(map[string]string),
		byConn: make(map[string]string),
	}
}

// Register binds userID to connID, superseding any previous connection for
// the same user. It returns the superseded connection id, if any. Calling it
// again with the same pair is a no-op.
func (r *Registry) Register(userID, connID string) (prev string) {
	if userID == "" || connID == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev = r.byUser[userID]
	if prev == connID {
		return ""
	}
	if prev != "" {
		delete(r.byConn, prev)
	}
	r.byUser[userID] = connID
	r.byConn[connID] = userID
	return prev
}

// Lookup returns the active connection id for a user.
func (r *Registry) Lookup(userID string) (connID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok = r.byUser[userID]
	return connID, ok
}

// UserFor returns the user currently bound to a connection id.
func (r *Registry) UserFor(connID string) (userID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok = r.byConn[connID]
	return userID, ok
}

// Unregister removes the mapping owned by connID and reports which user it
// belonged to. A stale connID (already superseded by a reconnect) returns
// ok=false and removes nothing.
func (r *Registry) Unregister(connID string) (userID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok = r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byUser[userID] == connID {
		delete(r.byUser, userID)
		return userID, true
	}
	return "", false
}

// Online reports how many users currently have an active connection.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
