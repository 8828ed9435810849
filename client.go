package main

import (
	"bytes"
	"fmt"
	"net"
	"sync"
)

// Client holds state about a single client connection.
type Client struct {
	// Conn is the TCP connection to the client.
	Conn net.Conn

	// A unique id, assigned by the accept loop. Internal to this server only.
	ID uint64

	// mutex guards nickname and activeChannel. The owning session writes
	// them, but sessions routing broadcasts read them too.
	mutex         sync.Mutex
	nickname      string
	activeChannel string

	// Channel names the client has joined. Mutated only by the
	// ChannelManager under its lock, so there is no lock here.
	joinedChannels map[string]struct{}

	// Bytes received but not yet split into lines. Only the owning session
	// touches it.
	readBuffer []byte

	// Outbound lines waiting to be written to the socket. Any goroutine may
	// push. Only the owning session peeks and pops.
	queueMutex sync.Mutex
	sendQueue  []string
}

// NewClient creates a Client. Its nickname defaults to guest<id>.
func NewClient(id uint64, conn net.Conn) *Client {
	return &Client{
		Conn:           conn,
		ID:             id,
		nickname:       fmt.Sprintf("guest%d", id),
		joinedChannels: make(map[string]struct{}),
	}
}

func (c *Client) String() string {
	if c.Conn == nil {
		return fmt.Sprintf("%d", c.ID)
	}
	return fmt.Sprintf("%d %s", c.ID, c.Conn.RemoteAddr())
}

// Nickname retrieves the client's current nickname.
func (c *Client) Nickname() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.nickname
}

func (c *Client) setNickname(nick string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.nickname = nick
}

// ActiveChannel retrieves the channel unprefixed chat lines go to. Blank
// means none.
func (c *Client) ActiveChannel() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.activeChannel
}

func (c *Client) setActiveChannel(name string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.activeChannel = name
}

// joinChannel records membership. Call only from the ChannelManager under
// its lock.
func (c *Client) joinChannel(name string) {
	c.joinedChannels[name] = struct{}{}
}

// leaveChannel removes membership. Leaving the active channel clears it.
// Call only from the ChannelManager under its lock.
func (c *Client) leaveChannel(name string) {
	delete(c.joinedChannels, name)

	c.mutex.Lock()
	if c.activeChannel == name {
		c.activeChannel = ""
	}
	c.mutex.Unlock()
}

// appendToBuffer appends raw received bytes to the inbound buffer.
func (c *Client) appendToBuffer(buf []byte) {
	c.readBuffer = append(c.readBuffer, buf...)
}

// bufferLen reports how many inbound bytes are waiting to be split into
// lines.
func (c *Client) bufferLen() int {
	return len(c.readBuffer)
}

// nextLine splits one complete line off the inbound buffer. The line comes
// back without its newline. A trailing \r, if any, stays; the router strips
// it. ok is false when no complete line is buffered.
func (c *Client) nextLine() (line string, ok bool) {
	i := bytes.IndexByte(c.readBuffer, '\n')
	if i < 0 {
		return "", false
	}

	line = string(c.readBuffer[:i])
	c.readBuffer = c.readBuffer[i+1:]
	return line, true
}

// PushMessage enqueues an already formatted line for delivery. Safe to call
// from any goroutine; it never blocks on socket I/O.
func (c *Client) PushMessage(line string) {
	c.queueMutex.Lock()
	c.sendQueue = append(c.sendQueue, line)
	c.queueMutex.Unlock()
}

// PeekMessage retrieves the next outbound line without removing it. ok is
// false when the queue is empty.
func (c *Client) PeekMessage() (line string, ok bool) {
	c.queueMutex.Lock()
	defer c.queueMutex.Unlock()
	if len(c.sendQueue) == 0 {
		return "", false
	}
	return c.sendQueue[0], true
}

// PopMessage removes the next outbound line, if any.
func (c *Client) PopMessage() {
	c.queueMutex.Lock()
	defer c.queueMutex.Unlock()
	if len(c.sendQueue) > 0 {
		c.sendQueue = c.sendQueue[1:]
	}
}

// QueuedMessages reports how many outbound lines are waiting.
func (c *Client) QueuedMessages() int {
	c.queueMutex.Lock()
	defer c.queueMutex.Unlock()
	return len(c.sendQueue)
}
