// Package chatclient is a small line-protocol chat client. The end to end
// tests use it to drive a server over real TCP.
package chatclient

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// Client represents a client connection to a chat server.
type Client struct {
	addr string

	writeTimeout time.Duration
	readTimeout  time.Duration

	conn net.Conn
	rw   *bufio.ReadWriter

	recvChan chan string
	sendChan chan string
	errChan  chan error
	doneChan chan struct{}
	wg       *sync.WaitGroup
}

// NewClient creates a Client that will connect to addr.
func NewClient(addr string) *Client {
	return &Client{
		addr: addr,

		writeTimeout: 30 * time.Second,
		readTimeout:  100 * time.Millisecond,
	}
}

// Start connects the client and begins reading and writing.
//
// Lines received from the server arrive on the receive channel without
// their line terminator. Lines you send to the send channel go to the
// server with a newline appended.
//
// If an error occurs, we send a message on the error channel. If you
// receive a message on that channel, you must stop the client.
//
// The caller must call Stop() to clean up the client.
func (c *Client) Start() (<-chan string, chan<- string, <-chan error, error) {
	if err := c.connect(); err != nil {
		return nil, nil, nil, fmt.Errorf("error connecting: %s", err)
	}

	c.recvChan = make(chan string, 512)
	c.sendChan = make(chan string, 512)
	c.errChan = make(chan error, 512)
	c.doneChan = make(chan struct{})

	c.wg = &sync.WaitGroup{}

	c.wg.Add(1)
	go c.reader(c.recvChan)

	c.wg.Add(1)
	go c.writer(c.sendChan)

	return c.recvChan, c.sendChan, c.errChan, nil
}

func (c *Client) connect() error {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	conn, err := dialer.Dial("tcp", c.addr)
	if err != nil {
		return fmt.Errorf("error dialing: %s", err)
	}

	c.conn = conn
	c.rw = bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	return nil
}

func (c *Client) reader(recvChan chan<- string) {
	defer c.wg.Done()

	for {
		select {
		case <-c.doneChan:
			close(recvChan)
			return
		default:
		}

		line, err := c.readLine()
		if err != nil {
			// We keep a short read timeout so we frequently check whether we
			// should end. Timeouts are not errors here.
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			c.errChan <- fmt.Errorf("error reading line: %s", err)
			close(recvChan)
			return
		}

		recvChan <- line
	}
}

func (c *Client) writer(sendChan <-chan string) {
	defer c.wg.Done()

LOOP:
	for {
		select {
		case <-c.doneChan:
			break LOOP
		case line, ok := <-sendChan:
			if !ok {
				break LOOP
			}
			if err := c.writeLine(line); err != nil {
				c.errChan <- fmt.Errorf("error writing line: %s", err)
				break LOOP
			}
		}
	}

	for range sendChan {
	}
}

// writeLine writes a line to the connection, appending a newline.
func (c *Client) writeLine(line string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(
		c.writeTimeout)); err != nil {
		return fmt.Errorf("unable to set deadline: %s", err)
	}

	buf := line + "\n"

	sz, err := c.rw.WriteString(buf)
	if err != nil {
		return err
	}

	if sz != len(buf) {
		return fmt.Errorf("short write")
	}

	if err := c.rw.Flush(); err != nil {
		return fmt.Errorf("flush error: %s", err)
	}

	return nil
}

// readLine reads a line from the connection and strips the terminator.
func (c *Client) readLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return "", fmt.Errorf("unable to set deadline: %s", err)
	}

	line, err := c.rw.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}

// Stop shuts down the client and cleans up.
//
// You must not send any lines on the send channel after calling this
// function.
func (c *Client) Stop() {
	// Tell reader and writer to end.
	close(c.doneChan)

	// We won't be sending anything further to writer. Let it clean up.
	close(c.sendChan)

	// Wait for reader and writer to end.
	c.wg.Wait()

	// We know the reader and writer won't be sending on the error channel
	// any more.
	close(c.errChan)

	_ = c.conn.Close()

	for range c.recvChan {
	}
	for range c.errChan {
	}
}
