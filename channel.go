package main

import (
	"sort"
	"strings"
	"sync"
)

// Channel holds everything to do with a channel.
type Channel struct {
	// Name is case sensitive and never changes.
	Name string

	mutex sync.Mutex

	// Client id to Client.
	members map[uint64]*Client
}

// NewChannel creates a Channel with no members.
func NewChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		members: make(map[uint64]*Client),
	}
}

func (ch *Channel) addClient(c *Client) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	ch.members[c.ID] = c
}

func (ch *Channel) removeClient(c *Client) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	delete(ch.members, c.ID)
}

func (ch *Channel) hasMember(c *Client) bool {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	_, exists := ch.members[c.ID]
	return exists
}

// MemberCount reports how many clients are in the channel.
func (ch *Channel) MemberCount() int {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	return len(ch.members)
}

// MemberNicknames retrieves the nicknames of the channel's members, sorted.
func (ch *Channel) MemberNicknames() []string {
	ch.mutex.Lock()
	nicks := make([]string, 0, len(ch.members))
	for _, member := range ch.members {
		nicks = append(nicks, member.Nickname())
	}
	ch.mutex.Unlock()

	sort.Strings(nicks)
	return nicks
}

// BroadcastMessage pushes text onto the outbound queue of every current
// member, appending a trailing newline if there is none. Pushing never
// blocks on socket I/O, so holding the member lock across the fan-out is
// fine.
func (ch *Channel) BroadcastMessage(text string) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}

	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	for _, member := range ch.members {
		member.PushMessage(text)
	}
}
