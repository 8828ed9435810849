package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidNickname(t *testing.T) {
	tests := []struct {
		nick  string
		valid bool
	}{
		{"alice", true},
		{"Alice_99", true},
		{"_", true},
		{strings.Repeat("a", 32), true},
		{"", false},
		{strings.Repeat("a", 33), false},
		{"has space", false},
		{"bad!", false},
		{"dash-ed", false},
	}

	for _, test := range tests {
		assert.Equal(t, test.valid, isValidNickname(test.nick), "nick %q",
			test.nick)
	}
}

func TestClientManagerAddRemove(t *testing.T) {
	m := NewClientManager(2)

	c1 := NewClient(1, nil)
	c2 := NewClient(2, nil)
	c3 := NewClient(3, nil)

	assert.True(t, m.AddClient(c1))
	assert.Equal(t, 1, m.ClientCount())
	assert.True(t, m.ClientExists(c1))
	assert.True(t, m.ClientExistsByNickname("guest1"))

	// Duplicate registration.
	assert.False(t, m.AddClient(c1))

	assert.True(t, m.AddClient(c2))

	// At capacity.
	assert.False(t, m.AddClient(c3))
	assert.False(t, m.CanAcceptNewConnection())

	assert.True(t, m.RemoveClient(c1))
	assert.False(t, m.ClientExists(c1))
	assert.False(t, m.ClientExistsByNickname("guest1"))
	assert.False(t, m.RemoveClient(c1))
	assert.True(t, m.CanAcceptNewConnection())

	// Removal freed capacity.
	assert.True(t, m.AddClient(c3))
}

func TestClientManagerNicknameIndex(t *testing.T) {
	m := NewClientManager(10)

	c := NewClient(1, nil)
	require.True(t, m.AddClient(c))

	got, exists := m.GetClientByNickname("guest1")
	require.True(t, exists)
	assert.Equal(t, c, got)

	_, exists = m.GetClientByNickname("nobody")
	assert.False(t, exists)
}

func TestClientManagerUpdateClientNickname(t *testing.T) {
	m := NewClientManager(10)

	alice := NewClient(1, nil)
	bob := NewClient(2, nil)
	require.True(t, m.AddClient(alice))
	require.True(t, m.AddClient(bob))

	require.True(t, m.UpdateClientNickname(alice, "alice"))
	assert.Equal(t, "alice", alice.Nickname())
	assert.False(t, m.ClientExistsByNickname("guest1"))
	assert.True(t, m.ClientExistsByNickname("alice"))

	// Another client's nickname.
	assert.False(t, m.UpdateClientNickname(bob, "alice"))
	assert.Equal(t, "guest2", bob.Nickname())

	// Renaming to your own current nickname fails too.
	assert.False(t, m.UpdateClientNickname(alice, "alice"))

	// Invalid nickname.
	assert.False(t, m.UpdateClientNickname(bob, "bad nick"))

	// The freed nickname is available again.
	require.True(t, m.UpdateClientNickname(alice, "alice2"))
	assert.True(t, m.UpdateClientNickname(bob, "alice"))
}

func TestClientManagerBroadcastMessage(t *testing.T) {
	m := NewClientManager(10)

	alice := NewClient(1, nil)
	bob := NewClient(2, nil)
	carol := NewClient(3, nil)
	require.True(t, m.AddClient(alice))
	require.True(t, m.AddClient(bob))
	require.True(t, m.AddClient(carol))
	require.True(t, m.UpdateClientNickname(alice, "alice"))

	m.BroadcastMessage("hello all", alice)

	assert.Equal(t, 0, alice.QueuedMessages())
	for _, c := range []*Client{bob, carol} {
		line, ok := c.PeekMessage()
		require.True(t, ok)
		assert.Equal(t, "<alice> hello all\n", line)
		c.PopMessage()
	}

	// Without a sender there is no prefix and everyone hears it.
	m.BroadcastMessage("server notice", nil)
	for _, c := range []*Client{alice, bob, carol} {
		line, ok := c.PeekMessage()
		require.True(t, ok)
		assert.Equal(t, "server notice\n", line)
	}
}

func TestClientManagerSendMessageToClient(t *testing.T) {
	m := NewClientManager(10)

	c := NewClient(1, nil)
	require.True(t, m.AddClient(c))

	m.SendMessageToClient(c, "plain")
	m.SendMessageToClient(c, "terminated\n")
	m.SendMessageToClient(nil, "ignored")

	line, ok := c.PeekMessage()
	require.True(t, ok)
	assert.Equal(t, "plain\n", line)
	c.PopMessage()

	line, ok = c.PeekMessage()
	require.True(t, ok)
	assert.Equal(t, "terminated\n", line)
}

func TestClientManagerTotalConnections(t *testing.T) {
	m := NewClientManager(10)

	assert.Equal(t, uint64(0), m.TotalConnections())

	m.IncrementTotalConnections()
	m.IncrementTotalConnections()
	assert.Equal(t, uint64(2), m.TotalConnections())

	// Removing clients never decrements the total.
	c := NewClient(1, nil)
	require.True(t, m.AddClient(c))
	require.True(t, m.RemoveClient(c))
	assert.Equal(t, uint64(2), m.TotalConnections())
}

func TestClientManagerRemovalCallback(t *testing.T) {
	m := NewClientManager(10)
	channels := NewChannelManager(10)

	// The callback calls back into the manager and into the channel
	// registry. It must not deadlock.
	var removed []*Client
	m.SetOnClientRemoved(func(c *Client) {
		removed = append(removed, c)
		channels.RemoveClientFromAllChannels(c)
		assert.False(t, m.ClientExists(c))
	})

	c := NewClient(1, nil)
	require.True(t, m.AddClient(c))
	require.True(t, channels.JoinChannel(c, "#go"))

	require.True(t, m.RemoveClient(c))
	require.Len(t, removed, 1)
	assert.Equal(t, c, removed[0])
	assert.False(t, channels.IsMember(c, "#go"))
}

func TestClientManagerAddedCallback(t *testing.T) {
	m := NewClientManager(10)

	var added []*Client
	m.SetOnClientAdded(func(c *Client) {
		added = append(added, c)
	})

	c := NewClient(1, nil)
	require.True(t, m.AddClient(c))
	require.Len(t, added, 1)
	assert.Equal(t, c, added[0])
}
