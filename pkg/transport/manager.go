package transport

import (
    "context"
    "sort"
    "sync"
    "time"
)

// Manager keeps at most one canonical Session per peer. Each entry is handed
// to exactly one handling goroutine; the table itself only tracks liveness so
// stalled sessions can be reaped after the inactivity window.
type Manager struct {
    mu    sync.RWMutex
    peers map[PeerID]Session
}

func NewManager() *Manager { return &Manager{peers: make(map[PeerID]Session)} }

// Add registers a session for its peer. A second session for the same peer
// replaces the first; the old one is closed (reconnect wins).
func (m *Manager) Add(s Session) (replaced bool) {
    pid := s.Peer().ID
    m.mu.Lock()
    old := m.peers[pid]
    m.peers[pid] = s
    m.mu.Unlock()
    if old != nil && old != s {
        _ = old.Close()
        return true
    }
    return false
}

// Get returns the current session for a peer (if any).
func (m *Manager) Get(id PeerID) Session {
    m.mu.RLock()
    defer m.mu.RUnlock()
    return m.peers[id]
}

// Remove drops a peer's entry and closes its session.
func (m *Manager) Remove(id PeerID) {
    m.mu.Lock()
    s := m.peers[id]
    delete(m.peers, id)
    m.mu.Unlock()
    if s != nil { _ = s.Close() }
}

// Rebind moves a session from a temporary id to its canonical id once the
// identity is known. Returns false if there was nothing to move.
func (m *Manager) Rebind(oldID, newID PeerID) bool {
    if oldID == newID || newID == "" { return false }
    m.mu.Lock()
    defer m.mu.Unlock()
    s := m.peers[oldID]
    if s == nil { return false }
    delete(m.peers, oldID)
    if mp, ok := s.(MutablePeer); ok {
        pi := s.Peer()
        pi.ID = newID
        mp.SetPeer(pi)
    }
    if old := m.peers[newID]; old != nil && old != s {
        go func() { _ = old.Close() }()
    }
    m.peers[newID] = s
    return true
}

// List returns all known peer IDs, sorted.
func (m *Manager) List() []PeerID {
    m.mu.RLock()
    defer m.mu.RUnlock()
    out := make([]PeerID, 0, len(m.peers))
    for id := range m.peers { out = append(out, id) }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}

// CloseAll tears down every tracked session.
func (m *Manager) CloseAll() {
    m.mu.Lock()
    peers := m.peers
    m.peers = make(map[PeerID]Session)
    m.mu.Unlock()
    for _, s := range peers { _ = s.Close() }
}

// ReapIdle runs until ctx is done, closing sessions whose last activity is
// older than idle. Bounds resource usage when a transfer stalls.
func (m *Manager) ReapIdle(ctx context.Context, idle time.Duration) {
    if idle <= 0 { idle = 5 * time.Minute }
    t := time.NewTicker(idle / 4)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case now := <-t.C:
            m.mu.Lock()
            for id, s := range m.peers {
                if now.Sub(s.LastActivity()) > idle {
                    delete(m.peers, id)
                    go func(s Session) { _ = s.Close() }(s)
                }
            }
            m.mu.Unlock()
        }
    }
}
