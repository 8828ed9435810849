package main

import (
	"sort"
	"sync"
)

// 50 from RFC.
const maxChannelLength = 50

// isValidChannelName checks a channel name for validity: non-empty, at most
// 50 characters, leading '#', and everything after that printable ASCII
// with no spaces or commas.
func isValidChannelName(name string) bool {
	if len(name) == 0 || len(name) > maxChannelLength {
		return false
	}

	if name[0] != '#' {
		return false
	}

	for i := 1; i < len(name); i++ {
		char := name[i]
		if char < '!' || char > '~' {
			return false
		}
		if char == ',' {
			return false
		}
	}

	return true
}

// ChannelManager owns every live channel.
//
// Channels are created on demand when a client joins one that does not
// exist yet. They are never deleted just because they empty out; only
// RemoveChannel deletes.
type ChannelManager struct {
	maxChannels int

	mutex sync.Mutex

	// Channel name to Channel.
	channels map[string]*Channel
}

// NewChannelManager creates a ChannelManager holding at most maxChannels
// channels.
func NewChannelManager(maxChannels int) *ChannelManager {
	return &ChannelManager{
		maxChannels: maxChannels,
		channels:    make(map[string]*Channel),
	}
}

// createChannelLocked creates a channel if the name is valid, the name is
// free, and there is capacity. Callers must hold the manager's lock.
func (m *ChannelManager) createChannelLocked(name string) bool {
	if !isValidChannelName(name) {
		return false
	}
	if _, exists := m.channels[name]; exists {
		return false
	}
	if len(m.channels) >= m.maxChannels {
		return false
	}

	m.channels[name] = NewChannel(name)
	channelsActive.Set(float64(len(m.channels)))
	return true
}

// CreateChannel creates an empty channel.
func (m *ChannelManager) CreateChannel(name string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.createChannelLocked(name)
}

// RemoveChannel deletes a channel. This is the only way a channel goes
// away.
func (m *ChannelManager) RemoveChannel(name string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.channels[name]; !exists {
		return false
	}

	delete(m.channels, name)
	channelsActive.Set(float64(len(m.channels)))
	return true
}

// Exists reports whether a channel with the name exists.
func (m *ChannelManager) Exists(name string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, exists := m.channels[name]
	return exists
}

// GetChannel looks up a channel by name.
func (m *ChannelManager) GetChannel(name string) (*Channel, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	ch, exists := m.channels[name]
	return ch, exists
}

// JoinChannel puts a client into a channel, creating the channel if it does
// not exist yet. It reports false if the name is invalid or the channel
// would exceed capacity.
func (m *ChannelManager) JoinChannel(c *Client, name string) bool {
	if c == nil || !isValidChannelName(name) {
		return false
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	ch, exists := m.channels[name]
	if !exists {
		if !m.createChannelLocked(name) {
			return false
		}
		ch = m.channels[name]
	}

	ch.addClient(c)
	c.joinChannel(name)
	return true
}

// LeaveChannel takes a client out of a channel. It reports false if the
// channel does not exist. The channel stays even when it empties out.
func (m *ChannelManager) LeaveChannel(c *Client, name string) bool {
	if c == nil {
		return false
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	ch, exists := m.channels[name]
	if !exists {
		return false
	}

	ch.removeClient(c)
	c.leaveChannel(name)
	return true
}

// IsMember reports whether the client is in the named channel.
func (m *ChannelManager) IsMember(c *Client, name string) bool {
	if c == nil {
		return false
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	ch, exists := m.channels[name]
	if !exists {
		return false
	}
	return ch.hasMember(c)
}

// RemoveClientFromAllChannels takes a client out of every channel it is in.
// The ClientManager's removal callback calls this, so it must work on a
// client whose channels may be disappearing concurrently.
func (m *ChannelManager) RemoveClientFromAllChannels(c *Client) {
	if c == nil {
		return
	}

	m.mutex.Lock()
	names := make([]string, 0, len(c.joinedChannels))
	for name := range c.joinedChannels {
		names = append(names, name)
	}
	m.mutex.Unlock()

	for _, name := range names {
		m.LeaveChannel(c, name)
	}
}

// BroadcastToChannel sends text to every member of the named channel. It is
// a no-op if the channel does not exist.
func (m *ChannelManager) BroadcastToChannel(name, text string) {
	m.mutex.Lock()
	ch, exists := m.channels[name]
	m.mutex.Unlock()

	if exists {
		ch.BroadcastMessage(text)
	}
}

// BroadcastToAllChannels sends text to every member of every channel.
// Clients in several channels hear it once per channel.
func (m *ChannelManager) BroadcastToAllChannels(text string) {
	m.mutex.Lock()
	channels := make([]*Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mutex.Unlock()

	for _, ch := range channels {
		ch.BroadcastMessage(text)
	}
}

// List retrieves every channel name, sorted.
func (m *ChannelManager) List() []string {
	m.mutex.Lock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	m.mutex.Unlock()

	sort.Strings(names)
	return names
}

// ChannelCount reports how many channels exist.
func (m *ChannelManager) ChannelCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.channels)
}

// MemberCount reports how many clients are in the named channel. A missing
// channel counts as zero.
func (m *ChannelManager) MemberCount(name string) int {
	m.mutex.Lock()
	ch, exists := m.channels[name]
	m.mutex.Unlock()

	if !exists {
		return 0
	}
	return ch.MemberCount()
}

// ClientChannels retrieves the names of the channels the client is in,
// sorted.
func (m *ChannelManager) ClientChannels(c *Client) []string {
	if c == nil {
		return nil
	}

	m.mutex.Lock()
	names := make([]string, 0, len(c.joinedChannels))
	for name := range c.joinedChannels {
		names = append(names, name)
	}
	m.mutex.Unlock()

	sort.Strings(names)
	return names
}

// MaxChannels reports the channel capacity.
func (m *ChannelManager) MaxChannels() int {
	return m.maxChannels
}
