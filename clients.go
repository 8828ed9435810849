package main

import (
	"strings"
	"sync"
	"sync/atomic"
)

const maxNickLength = 32

// isValidNickname checks a nickname for validity: non-empty, at most 32
// characters, ASCII letters, digits, and underscore only.
func isValidNickname(nick string) bool {
	if len(nick) == 0 || len(nick) > maxNickLength {
		return false
	}

	for i := 0; i < len(nick); i++ {
		char := nick[i]
		if char >= 'a' && char <= 'z' {
			continue
		}
		if char >= 'A' && char <= 'Z' {
			continue
		}
		if char >= '0' && char <= '9' {
			continue
		}
		if char == '_' {
			continue
		}
		return false
	}

	return true
}

// ClientManager owns every registered client and the nickname index over
// them.
//
// Lifecycle callbacks run after the manager's lock is released. They may
// touch other subsystems freely, but going back into this manager from a
// callback on the same client is on the caller.
type ClientManager struct {
	maxClients int

	// Counts every accepted socket, ever. Never decremented.
	totalConnections uint64

	mutex sync.Mutex

	// Client id to Client.
	clients map[uint64]*Client

	// Nickname to Client. Exactly one entry per registered client, keyed by
	// its current nickname.
	nicknames map[string]*Client

	onClientAdded   func(*Client)
	onClientRemoved func(*Client)
}

// NewClientManager creates a ClientManager holding at most maxClients
// clients.
func NewClientManager(maxClients int) *ClientManager {
	return &ClientManager{
		maxClients: maxClients,
		clients:    make(map[uint64]*Client),
		nicknames:  make(map[string]*Client),
	}
}

// SetOnClientAdded installs a callback invoked after a client registers.
func (m *ClientManager) SetOnClientAdded(callback func(*Client)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onClientAdded = callback
}

// SetOnClientRemoved installs a callback invoked after a client is removed.
// The server uses this to cascade channel cleanup.
func (m *ClientManager) SetOnClientRemoved(callback func(*Client)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onClientRemoved = callback
}

// AddClient registers a client and indexes it by its current nickname. It
// reports false at capacity or if the client is already registered.
func (m *ClientManager) AddClient(c *Client) bool {
	if c == nil {
		return false
	}

	m.mutex.Lock()
	if len(m.clients) >= m.maxClients {
		m.mutex.Unlock()
		return false
	}
	if _, exists := m.clients[c.ID]; exists {
		m.mutex.Unlock()
		return false
	}

	m.clients[c.ID] = c
	m.nicknames[c.Nickname()] = c
	clientsActive.Set(float64(len(m.clients)))
	callback := m.onClientAdded
	m.mutex.Unlock()

	if callback != nil {
		callback(c)
	}
	return true
}

// RemoveClient unregisters a client and closes its socket. Closing is what
// makes the owning session's I/O fail and its loop exit. The removal
// callback runs after the lock is released.
func (m *ClientManager) RemoveClient(c *Client) bool {
	if c == nil {
		return false
	}

	m.mutex.Lock()
	if _, exists := m.clients[c.ID]; !exists {
		m.mutex.Unlock()
		return false
	}

	delete(m.nicknames, c.Nickname())
	delete(m.clients, c.ID)
	clientsActive.Set(float64(len(m.clients)))
	callback := m.onClientRemoved
	m.mutex.Unlock()

	if c.Conn != nil {
		_ = c.Conn.Close()
	}

	if callback != nil {
		callback(c)
	}
	return true
}

// ClientExists reports whether the client is registered.
func (m *ClientManager) ClientExists(c *Client) bool {
	if c == nil {
		return false
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, exists := m.clients[c.ID]
	return exists
}

// ClientExistsByNickname reports whether any client holds the nickname.
func (m *ClientManager) ClientExistsByNickname(nick string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, exists := m.nicknames[nick]
	return exists
}

// GetClientByNickname looks a client up by nickname.
func (m *ClientManager) GetClientByNickname(nick string) (*Client, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	c, exists := m.nicknames[nick]
	return c, exists
}

// AllClients retrieves a snapshot of every registered client.
func (m *ClientManager) AllClients() []*Client {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	return clients
}

// UpdateClientNickname renames a client and moves its index entry, as one
// step. It reports false if the new nickname is invalid or any client,
// including this one, already holds it.
func (m *ClientManager) UpdateClientNickname(c *Client, newNick string) bool {
	if c == nil || !isValidNickname(newNick) {
		return false
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.nicknames[newNick]; exists {
		return false
	}

	delete(m.nicknames, c.Nickname())
	c.setNickname(newNick)
	m.nicknames[newNick] = c
	return true
}

// BroadcastMessage enqueues text on every client except the sender. With a
// sender the line is formatted as "<nick> text"; without one the text goes
// out as is. A sender of nil means everyone hears it.
func (m *ClientManager) BroadcastMessage(text string, sender *Client) {
	formatted := text
	if sender != nil {
		formatted = "<" + sender.Nickname() + "> " + text
	}
	if !strings.HasSuffix(formatted, "\n") {
		formatted += "\n"
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, c := range m.clients {
		if c != sender {
			c.PushMessage(formatted)
		}
	}
}

// SendMessageToClient enqueues text on one client, ensuring it ends in a
// newline.
func (m *ClientManager) SendMessageToClient(c *Client, text string) {
	if c == nil {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	c.PushMessage(text)
}

// ClientCount reports how many clients are registered.
func (m *ClientManager) ClientCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.clients)
}

// TotalConnections reports how many sockets have ever been accepted.
func (m *ClientManager) TotalConnections() uint64 {
	return atomic.LoadUint64(&m.totalConnections)
}

// IncrementTotalConnections records one accepted socket. The accept loop
// calls this exactly once per socket it accepts.
func (m *ClientManager) IncrementTotalConnections() {
	atomic.AddUint64(&m.totalConnections, 1)
	connectionsTotal.Inc()
}

// MaxClients reports the client capacity.
func (m *ClientManager) MaxClients() int {
	return m.maxClients
}

// CanAcceptNewConnection reports whether there is room for another client.
func (m *ClientManager) CanAcceptNewConnection() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.clients) < m.maxClients
}
