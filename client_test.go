package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientDefaultNickname(t *testing.T) {
	c := NewClient(7, nil)
	assert.Equal(t, "guest7", c.Nickname())
	assert.Equal(t, "", c.ActiveChannel())
}

func TestClientNextLine(t *testing.T) {
	tests := []struct {
		input     string
		wantLines []string
		leftover  int
	}{
		{"hello\n", []string{"hello"}, 0},
		{"one\ntwo\n", []string{"one", "two"}, 0},
		{"partial", nil, 7},
		{"done\npart", []string{"done"}, 4},
		// A \r stays on the line. The router strips it.
		{"hello\r\n", []string{"hello\r"}, 0},
		{"\n\n", []string{"", ""}, 0},
	}

	for _, test := range tests {
		c := NewClient(1, nil)
		c.appendToBuffer([]byte(test.input))

		var lines []string
		for {
			line, ok := c.nextLine()
			if !ok {
				break
			}
			lines = append(lines, line)
		}

		assert.Equal(t, test.wantLines, lines, "input %q", test.input)
		assert.Equal(t, test.leftover, c.bufferLen(), "input %q", test.input)
	}
}

func TestClientNextLineSplitAcrossReads(t *testing.T) {
	c := NewClient(1, nil)

	c.appendToBuffer([]byte("hel"))
	_, ok := c.nextLine()
	require.False(t, ok)

	c.appendToBuffer([]byte("lo\nwor"))
	line, ok := c.nextLine()
	require.True(t, ok)
	assert.Equal(t, "hello", line)

	_, ok = c.nextLine()
	require.False(t, ok)

	c.appendToBuffer([]byte("ld\n"))
	line, ok = c.nextLine()
	require.True(t, ok)
	assert.Equal(t, "world", line)
}

func TestClientSendQueueFIFO(t *testing.T) {
	c := NewClient(1, nil)

	_, ok := c.PeekMessage()
	assert.False(t, ok)

	c.PushMessage("first\n")
	c.PushMessage("second\n")
	c.PushMessage("third\n")
	assert.Equal(t, 3, c.QueuedMessages())

	line, ok := c.PeekMessage()
	require.True(t, ok)
	assert.Equal(t, "first\n", line)

	// Peek must not remove.
	line, ok = c.PeekMessage()
	require.True(t, ok)
	assert.Equal(t, "first\n", line)

	c.PopMessage()
	line, ok = c.PeekMessage()
	require.True(t, ok)
	assert.Equal(t, "second\n", line)

	c.PopMessage()
	c.PopMessage()
	_, ok = c.PeekMessage()
	assert.False(t, ok)

	// Popping an empty queue is harmless.
	c.PopMessage()
	assert.Equal(t, 0, c.QueuedMessages())
}

func TestClientLeaveChannelClearsActive(t *testing.T) {
	c := NewClient(1, nil)

	c.joinChannel("#one")
	c.joinChannel("#two")
	c.setActiveChannel("#one")

	c.leaveChannel("#two")
	assert.Equal(t, "#one", c.ActiveChannel())

	c.leaveChannel("#one")
	assert.Equal(t, "", c.ActiveChannel())
}
