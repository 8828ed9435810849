package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// CommandHandler handles one slash-command. args holds the whitespace
// separated tokens after the command name.
type CommandHandler func(sender *Client, args []string)

// Router turns inbound lines into registry operations and outbound
// messages.
//
// A line starting with '/' is a command. Anything else is chat for the
// sender's active channel. Command names are case sensitive and lowercase.
type Router struct {
	clients  *ClientManager
	channels *ChannelManager

	// mutex guards handlers and motd.
	mutex    sync.Mutex
	handlers map[string]CommandHandler
	motd     string

	// Counters. All atomic; read through the getters.
	processedMessages uint64
	processedCommands uint64
	sentMessages      uint64
	receivedBytes     uint64
	sentBytes         uint64
}

// NewRouter creates a Router over the two registries and registers the
// default command set.
func NewRouter(clients *ClientManager, channels *ChannelManager) *Router {
	r := &Router{
		clients:  clients,
		channels: channels,
		handlers: make(map[string]CommandHandler),
	}

	r.RegisterCommand("nick", r.nickCommand)
	r.RegisterCommand("join", r.joinCommand)
	r.RegisterCommand("part", r.partCommand)
	r.RegisterCommand("quit", r.quitCommand)
	r.RegisterCommand("list", r.listCommand)
	r.RegisterCommand("who", r.whoCommand)
	r.RegisterCommand("msg", r.msgCommand)
	r.RegisterCommand("motd", r.motdCommand)
	r.RegisterCommand("help", r.helpCommand)

	return r
}

// RegisterCommand installs a handler under a name.
func (r *Router) RegisterCommand(name string, handler CommandHandler) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.handlers[name] = handler
}

// UnregisterCommand removes a handler.
func (r *Router) UnregisterCommand(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.handlers, name)
}

// SetMOTD sets the message of the day.
func (r *Router) SetMOTD(motd string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.motd = motd
}

// MOTD retrieves the message of the day.
func (r *Router) MOTD() string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.motd
}

// HandleMessage takes action on one line received from a client. The line
// must not include its trailing newline; a trailing \r is stripped here.
func (r *Router) HandleMessage(sender *Client, line string) {
	if sender == nil {
		return
	}

	atomic.AddUint64(&r.processedMessages, 1)
	atomic.AddUint64(&r.receivedBytes, uint64(len(line)))
	messagesProcessed.Inc()
	bytesReceived.Add(float64(len(line)))

	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return
	}

	if strings.HasPrefix(line, "/") {
		r.handleCommand(sender, line)
		return
	}

	active := sender.ActiveChannel()
	if active != "" {
		r.sendChannelMessage(sender, active, line)
		return
	}

	r.SendServerMessage(sender, "You are not in any channel. Join one with /join <#channel> or send a private message with /msg <user> <message>.")
}

func (r *Router) handleCommand(sender *Client, line string) {
	atomic.AddUint64(&r.processedCommands, 1)
	commandsProcessed.Inc()

	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	name := strings.TrimPrefix(args[0], "/")
	args = args[1:]

	r.mutex.Lock()
	handler, exists := r.handlers[name]
	r.mutex.Unlock()

	if !exists {
		r.SendServerMessage(sender, "Unknown command: "+name)
		return
	}

	handler(sender, args)
}

// countSend records one outbound message of the given payload length.
func (r *Router) countSend(text string) {
	atomic.AddUint64(&r.sentMessages, 1)
	atomic.AddUint64(&r.sentBytes, uint64(len(text)))
	messagesSent.Inc()
	bytesSent.Add(float64(len(text)))
}

// SendServerMessage sends "*** text" to one client.
func (r *Router) SendServerMessage(c *Client, text string) {
	if c == nil {
		return
	}
	r.countSend(text)
	r.clients.SendMessageToClient(c, "*** "+text)
}

// BroadcastMessage sends "<nick> text" to every client except the sender.
func (r *Router) BroadcastMessage(sender *Client, text string) {
	if sender == nil {
		return
	}
	r.countSend(text)
	r.clients.BroadcastMessage(text, sender)
}

// sendPrivateMessage delivers text to the named recipient and echoes a copy
// back to the sender.
func (r *Router) sendPrivateMessage(sender *Client, recipient, text string) {
	if sender == nil {
		return
	}

	target, exists := r.clients.GetClientByNickname(recipient)
	if !exists {
		r.SendServerMessage(sender, "User "+recipient+" not found.")
		return
	}

	r.countSend(text)
	r.clients.SendMessageToClient(target, "*Private from "+sender.Nickname()+": "+text)
	r.clients.SendMessageToClient(sender, "*Private to "+recipient+": "+text)
}

// sendChannelMessage delivers text to a channel the sender is in. The
// sender hears its own message through the channel broadcast.
func (r *Router) sendChannelMessage(sender *Client, channelName, text string) {
	if sender == nil {
		return
	}

	if !r.channels.Exists(channelName) {
		r.SendServerMessage(sender, "Channel "+channelName+" does not exist.")
		return
	}

	if !r.channels.IsMember(sender, channelName) {
		r.SendServerMessage(sender, "You are not in channel "+channelName)
		return
	}

	r.countSend(text)
	r.channels.BroadcastToChannel(channelName, "<"+sender.Nickname()+"@"+channelName+"> "+text)
}

// Counter getters.

// ProcessedMessages reports how many inbound lines have been handled.
func (r *Router) ProcessedMessages() uint64 {
	return atomic.LoadUint64(&r.processedMessages)
}

// ProcessedCommands reports how many slash-commands have been handled.
func (r *Router) ProcessedCommands() uint64 {
	return atomic.LoadUint64(&r.processedCommands)
}

// SentMessages reports how many messages have been sent.
func (r *Router) SentMessages() uint64 {
	return atomic.LoadUint64(&r.sentMessages)
}

// ReceivedBytes reports how many payload bytes have been received.
func (r *Router) ReceivedBytes() uint64 {
	return atomic.LoadUint64(&r.receivedBytes)
}

// SentBytes reports how many payload bytes have been sent.
func (r *Router) SentBytes() uint64 {
	return atomic.LoadUint64(&r.sentBytes)
}

// Command handlers.

func (r *Router) nickCommand(sender *Client, args []string) {
	if len(args) == 0 {
		r.SendServerMessage(sender, "Usage: /nick <new_nick>")
		return
	}

	newNick := args[0]

	if existing, exists := r.clients.GetClientByNickname(newNick); exists &&
		existing != sender {
		r.SendServerMessage(sender, "Nickname '"+newNick+"' already in use.")
		return
	}

	oldNick := sender.Nickname()

	// Renaming to your own current nickname fails here too: the index still
	// holds the old entry when we check for collisions.
	if !r.clients.UpdateClientNickname(sender, newNick) {
		r.SendServerMessage(sender,
			"Nickname '"+newNick+"' is not valid or already in use.")
		return
	}

	r.SendServerMessage(sender, "Nickname switched to '"+newNick+"'")
	r.clients.BroadcastMessage(
		"User '"+oldNick+"' is now known as '"+newNick+"'", nil)
}

func (r *Router) joinCommand(sender *Client, args []string) {
	if len(args) == 0 {
		r.SendServerMessage(sender, "Usage: /join <#channel>")
		return
	}

	channelName := args[0]
	if !strings.HasPrefix(channelName, "#") {
		channelName = "#" + channelName
	}

	if !r.channels.JoinChannel(sender, channelName) {
		r.SendServerMessage(sender, "Could not join "+channelName)
		return
	}

	sender.setActiveChannel(channelName)
	r.SendServerMessage(sender, "You joined "+channelName+" (now active).")
	r.channels.BroadcastToChannel(channelName,
		"*** "+sender.Nickname()+" joined the channel.")
}

func (r *Router) partCommand(sender *Client, args []string) {
	if len(args) == 0 {
		r.SendServerMessage(sender, "Usage: /part <#channel>")
		return
	}

	channelName := args[0]
	if !strings.HasPrefix(channelName, "#") {
		channelName = "#" + channelName
	}

	if !r.channels.IsMember(sender, channelName) {
		r.SendServerMessage(sender, "You are not in channel "+channelName)
		return
	}

	r.channels.BroadcastToChannel(channelName,
		"*** "+sender.Nickname()+" left the channel.")

	if r.channels.LeaveChannel(sender, channelName) {
		r.SendServerMessage(sender, "You have left "+channelName)
	} else {
		r.SendServerMessage(sender, "Error leaving channel "+channelName)
	}
}

func (r *Router) quitCommand(sender *Client, args []string) {
	reason := "Client quit."
	if len(args) > 0 {
		reason = strings.Join(args, " ")
	}

	notification := sender.Nickname() + " left the server: " + reason
	for _, channelName := range r.channels.ClientChannels(sender) {
		r.channels.BroadcastToChannel(channelName, "*** "+notification)
	}

	// Removal cascades: the registry callback leaves all channels, and
	// closing the socket ends the session loop.
	r.clients.RemoveClient(sender)
}

func (r *Router) listCommand(sender *Client, args []string) {
	channelNames := r.channels.List()
	if len(channelNames) == 0 {
		r.SendServerMessage(sender, "No active channels.")
		return
	}

	r.SendServerMessage(sender, "Active channels:")
	for _, channelName := range channelNames {
		r.SendServerMessage(sender, fmt.Sprintf("- %s (%d members)",
			channelName, r.channels.MemberCount(channelName)))
	}
}

func (r *Router) whoCommand(sender *Client, args []string) {
	if len(args) == 0 {
		clients := r.clients.AllClients()
		if len(clients) == 0 {
			r.SendServerMessage(sender, "No users online.")
			return
		}

		nicks := make([]string, 0, len(clients))
		byNick := make(map[string]*Client, len(clients))
		for _, c := range clients {
			nick := c.Nickname()
			nicks = append(nicks, nick)
			byNick[nick] = c
		}
		sort.Strings(nicks)

		r.SendServerMessage(sender,
			fmt.Sprintf("Online users (%d):", len(clients)))
		for _, nick := range nicks {
			line := "- " + nick
			if channelNames := r.channels.ClientChannels(byNick[nick]); len(channelNames) > 0 {
				line += " in: " + strings.Join(channelNames, ", ")
			}
			r.SendServerMessage(sender, line)
		}
		return
	}

	channelName := args[0]
	if !strings.HasPrefix(channelName, "#") {
		channelName = "#" + channelName
	}

	ch, exists := r.channels.GetChannel(channelName)
	if !exists {
		r.SendServerMessage(sender, "Channel "+channelName+" does not exist.")
		return
	}

	nicks := ch.MemberNicknames()
	r.SendServerMessage(sender,
		fmt.Sprintf("Users in %s (%d):", channelName, len(nicks)))
	for _, nick := range nicks {
		r.SendServerMessage(sender, "- "+nick)
	}
}

func (r *Router) msgCommand(sender *Client, args []string) {
	if len(args) < 2 {
		r.SendServerMessage(sender, "Usage: /msg <#channel_or_user> <message>")
		return
	}

	recipient := args[0]
	text := strings.Join(args[1:], " ")

	if strings.HasPrefix(recipient, "#") {
		r.sendChannelMessage(sender, recipient, text)
	} else {
		r.sendPrivateMessage(sender, recipient, text)
	}
}

func (r *Router) motdCommand(sender *Client, args []string) {
	motd := r.MOTD()
	if motd == "" {
		r.SendServerMessage(sender, "No MOTD available.")
		return
	}

	r.SendServerMessage(sender, "Message of the Day:")
	r.SendServerMessage(sender, motd)
}

func (r *Router) helpCommand(sender *Client, args []string) {
	r.SendServerMessage(sender, "Available commands:")
	r.SendServerMessage(sender, "/nick <name>              - Change your nickname")
	r.SendServerMessage(sender, "/join <#channel>          - Join a channel")
	r.SendServerMessage(sender, "/part <#channel>          - Leave a channel")
	r.SendServerMessage(sender, "/msg <#channel|user> <msg> - Send a message to a channel or user")
	r.SendServerMessage(sender, "/list                     - List all active channels")
	r.SendServerMessage(sender, "/who [#channel]           - List users on server or in a channel")
	r.SendServerMessage(sender, "/motd                     - Show the Message of the Day")
	r.SendServerMessage(sender, "/quit [message]           - Disconnect from the server")
	r.SendServerMessage(sender, "/help                     - Show this help message")
}
