// Package gateway is a small telnet chat server. Users pick a name and talk
// in rooms. The Hub doubles as the bot's chat.Platform: bot replies are
// rendered to room members and echoed back to the bot as automated events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/gateway/telnet"
)

// DefaultRoom is joined by every user after login.
const DefaultRoom = "general"

// BotUserID identifies the bot's own messages.
const BotUserID chat.UserID = "bot"

// ErrEmptyMessage is returned when the bot sends a payload with no content.
var ErrEmptyMessage = errors.New("empty message")

const (
	// maxTrackedPerRoom bounds the bot messages a room remembers. The least
	// recently posted or edited ones are forgotten first and can no longer
	// be edited or retracted.
	maxTrackedPerRoom = 64
	// outboxSize is how many lines a user may fall behind before further
	// lines to them are dropped.
	outboxSize = 256
)

var (
	namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{1,15}$`)
	roomPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,23}$`)
)

// Sink receives every chat event the gateway produces.
type Sink func(ctx context.Context, event chat.Event)

type client struct {
	author chat.Author
	conn   *telnet.Conn
	room   *room

	outbox  chan string
	done    chan struct{}
	flushed chan struct{}
}

type room struct {
	channel chat.Channel
	members map[*client]struct{}
	// posted holds the IDs of tracked bot messages, least recently touched
	// first.
	posted []chat.MessageID
}

// Hub tracks connected users, rooms and the messages posted by the bot.
type Hub struct {
	bot    chat.Author
	logger *zap.Logger
	newID  func() string
	now    func() time.Time

	mu       sync.Mutex
	clients  map[string]*client
	rooms    map[chat.ChannelID]*room
	messages map[chat.MessageID]chat.Message
	sink     Sink
}

// NewHub creates an empty hub whose bot user is called botName.
//
// Precondition: botName must be non-empty; logger must be non-nil.
func NewHub(botName string, logger *zap.Logger) *Hub {
	return &Hub{
		bot:      chat.Author{ID: BotUserID, Name: botName, Automated: true},
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
		clients:  make(map[string]*client),
		rooms:    make(map[chat.ChannelID]*room),
		messages: make(map[chat.MessageID]chat.Message),
	}
}

// Attach sets the event sink. Events produced before Attach are dropped.
func (h *Hub) Attach(sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sink = sink
}

// TextChannel returns the channel of the text room called name.
func TextChannel(name string) chat.Channel {
	return chat.Channel{ID: chat.ChannelID("text:" + name), Name: name, Kind: chat.KindText}
}

// VoiceChannel returns the channel of the voice room called name.
func VoiceChannel(name string) chat.Channel {
	return chat.Channel{ID: chat.ChannelID("voice:" + name), Name: name, Kind: chat.KindVoice}
}

// DirectChannel returns the private channel between two users. The ID does
// not depend on argument order.
func DirectChannel(a, b chat.Author) chat.Channel {
	ids := []string{string(a.ID), string(b.ID)}
	sort.Strings(ids)
	return chat.Channel{
		ID:   chat.ChannelID("dm:" + ids[0] + ":" + ids[1]),
		Name: a.Name + "," + b.Name,
		Kind: chat.KindDirect,
	}
}

func label(ch chat.Channel) string {
	switch ch.Kind {
	case chat.KindText:
		return "#" + ch.Name
	case chat.KindVoice:
		return "voice:" + ch.Name
	default:
		return ch.Name
	}
}

func shortID(id chat.MessageID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

// Send implements chat.Platform.
func (h *Hub) Send(ctx context.Context, channel chat.ChannelID, payload chat.Payload) (chat.Message, error) {
	if payload.IsZero() {
		return chat.Message{}, chat.NewDeliveryFailure("send", channel, "", ErrEmptyMessage)
	}
	h.mu.Lock()
	r, ok := h.rooms[channel]
	if !ok {
		h.mu.Unlock()
		err := chat.ErrUnknownChannel
		if strings.HasPrefix(string(channel), "dm:") {
			err = chat.ErrForbidden
		}
		return chat.Message{}, chat.NewDeliveryFailure("send", channel, "", err)
	}
	msg := chat.Message{ID: chat.MessageID(h.newID()), ChannelID: channel, Payload: payload}
	h.track(r, msg)
	members := r.list(nil)
	ch := r.channel
	sink := h.sink
	h.mu.Unlock()

	h.broadcast(members, telnet.Colorize(telnet.Cyan, fmt.Sprintf("[%s] %s", label(ch), h.bot.Name))+
		telnet.Colorize(telnet.Dim, " #"+shortID(msg.ID))+"\n"+payload.String())

	if sink != nil {
		sink(ctx, chat.Event{
			ID:         string(msg.ID),
			Author:     h.bot,
			Channel:    ch,
			Content:    payload.Text,
			ReceivedAt: h.now(),
		})
	}
	return msg, nil
}

// Edit implements chat.Platform.
func (h *Hub) Edit(_ context.Context, msg chat.Message, payload chat.Payload) (chat.Message, error) {
	if payload.IsZero() {
		return chat.Message{}, chat.NewDeliveryFailure("edit", msg.ChannelID, msg.ID, ErrEmptyMessage)
	}
	h.mu.Lock()
	stored, ok := h.messages[msg.ID]
	if !ok {
		h.mu.Unlock()
		return chat.Message{}, chat.NewDeliveryFailure("edit", msg.ChannelID, msg.ID, chat.ErrUnknownMessage)
	}
	r, ok := h.rooms[stored.ChannelID]
	if !ok {
		h.mu.Unlock()
		return chat.Message{}, chat.NewDeliveryFailure("edit", stored.ChannelID, msg.ID, chat.ErrUnknownChannel)
	}
	stored.Payload = payload
	h.track(r, stored)
	members := r.list(nil)
	ch := r.channel
	h.mu.Unlock()

	h.broadcast(members, telnet.Colorize(telnet.Cyan, fmt.Sprintf("[%s] %s", label(ch), h.bot.Name))+
		telnet.Colorize(telnet.Dim, " #"+shortID(msg.ID)+" (edited)")+"\n"+payload.String())
	return stored, nil
}

// Delete implements chat.Platform.
func (h *Hub) Delete(_ context.Context, msg chat.Message) error {
	h.mu.Lock()
	stored, ok := h.messages[msg.ID]
	if !ok {
		h.mu.Unlock()
		return chat.NewDeliveryFailure("delete", msg.ChannelID, msg.ID, chat.ErrUnknownMessage)
	}
	delete(h.messages, msg.ID)
	r, ok := h.rooms[stored.ChannelID]
	if !ok {
		h.mu.Unlock()
		return nil
	}
	r.forget(msg.ID)
	members := r.list(nil)
	ch := r.channel
	h.mu.Unlock()

	h.broadcast(members, telnet.Colorize(telnet.Dim,
		fmt.Sprintf("[%s] %s retracted #%s", label(ch), h.bot.Name, shortID(msg.ID))))
	return nil
}

// LookupUser implements chat.Directory. Names match case-insensitively and
// include the bot itself.
func (h *Hub) LookupUser(name string) (chat.Author, bool) {
	key := strings.ToLower(name)
	if key == strings.ToLower(h.bot.Name) {
		return h.bot, true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[key]
	if !ok {
		return chat.Author{}, false
	}
	return c.author, true
}

// HandleSession implements telnet.SessionHandler.
//
// Postcondition: The user has left every room when this method returns.
func (h *Hub) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	c, err := h.login(conn)
	if err != nil {
		return ignoreEOF(err)
	}
	go h.writeLoop(c)
	defer func() {
		h.logout(c)
		close(c.done)
		<-c.flushed
	}()
	h.logger.Info("user connected",
		zap.String("user", c.author.Name),
		zap.String("remote_addr", conn.RemoteAddr().String()),
	)
	h.join(c, TextChannel(DefaultRoom))

	for {
		line, err := conn.ReadLine()
		if err != nil {
			return ignoreEOF(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if h.slashCommand(ctx, c, line) {
				return nil
			}
			continue
		}
		h.say(ctx, c, line)
	}
}

func ignoreEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Hub) login(conn *telnet.Conn) (*client, error) {
	_ = conn.WriteLine(telnet.Colorize(telnet.Bold, "Welcome to the tic-tac-toe lounge."))
	for {
		if err := conn.WritePrompt("Name: "); err != nil {
			return nil, err
		}
		name, err := conn.ReadLine()
		if err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if !namePattern.MatchString(name) {
			_ = conn.WriteLine("Names are 2-16 letters, digits or underscores and start with a letter.")
			continue
		}
		c := &client{
			author:  chat.Author{ID: chat.UserID("user:" + strings.ToLower(name)), Name: name},
			conn:    conn,
			outbox:  make(chan string, outboxSize),
			done:    make(chan struct{}),
			flushed: make(chan struct{}),
		}
		if h.register(c) {
			_ = conn.WriteLine(fmt.Sprintf("Hello %s. Type /help for commands.", name))
			return c, nil
		}
		_ = conn.WriteLine("That name is taken.")
	}
}

func (h *Hub) register(c *client) bool {
	key := strings.ToLower(c.author.Name)
	if key == strings.ToLower(h.bot.Name) {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, taken := h.clients[key]; taken {
		return false
	}
	h.clients[key] = c
	return true
}

func (h *Hub) logout(c *client) {
	h.leave(c)
	h.mu.Lock()
	delete(h.clients, strings.ToLower(c.author.Name))
	h.mu.Unlock()
	h.logger.Info("user disconnected", zap.String("user", c.author.Name))
}

// join moves c into the room of channel, creating it on first use.
func (h *Hub) join(c *client, channel chat.Channel) {
	h.leave(c)
	h.mu.Lock()
	r, ok := h.rooms[channel.ID]
	if !ok {
		r = &room{channel: channel, members: make(map[*client]struct{})}
		h.rooms[channel.ID] = r
	}
	others := r.list(c)
	r.members[c] = struct{}{}
	c.room = r
	h.mu.Unlock()

	h.broadcast(others, telnet.Colorize(telnet.Dim, fmt.Sprintf("[%s] %s joined", label(channel), c.author.Name)))
	names := make([]string, 0, len(others))
	for _, o := range others {
		names = append(names, o.author.Name)
	}
	sort.Strings(names)
	msg := fmt.Sprintf("You are in %s.", label(channel))
	if len(names) > 0 {
		msg += " Here: " + strings.Join(names, ", ") + "."
	}
	if channel.Kind == chat.KindVoice {
		msg += " The bot does not listen in voice rooms."
	}
	h.tell(c, msg)
}

// leave removes c from its room. Empty rooms are dropped.
func (h *Hub) leave(c *client) {
	h.mu.Lock()
	r := c.room
	if r == nil {
		h.mu.Unlock()
		return
	}
	delete(r.members, c)
	c.room = nil
	if len(r.members) == 0 {
		delete(h.rooms, r.channel.ID)
		for _, id := range r.posted {
			delete(h.messages, id)
		}
		r.posted = nil
	}
	others := r.list(nil)
	h.mu.Unlock()

	h.broadcast(others, telnet.Colorize(telnet.Dim, fmt.Sprintf("[%s] %s left", label(r.channel), c.author.Name)))
}

func (h *Hub) say(ctx context.Context, c *client, text string) {
	h.mu.Lock()
	r := c.room
	if r == nil {
		h.mu.Unlock()
		h.tell(c, "You are not in a room. Use /join #room.")
		return
	}
	others := r.list(c)
	ch := r.channel
	sink := h.sink
	h.mu.Unlock()

	h.broadcast(others, fmt.Sprintf("[%s] %s: %s", label(ch), telnet.Colorize(telnet.Bold, c.author.Name), text))
	h.emit(ctx, sink, c.author, ch, text)
}

func (h *Hub) emit(ctx context.Context, sink Sink, author chat.Author, ch chat.Channel, text string) {
	if sink == nil {
		return
	}
	sink(ctx, chat.Event{
		ID:         h.newID(),
		Author:     author,
		Channel:    ch,
		Content:    text,
		ReceivedAt: h.now(),
	})
}

// slashCommand runs a gateway command and reports whether the user quit.
func (h *Hub) slashCommand(ctx context.Context, c *client, line string) bool {
	verb, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(verb) {
	case "quit", "q":
		h.tell(c, "Bye.")
		return true
	case "join", "j":
		if name, ok := roomName(rest); ok {
			h.join(c, TextChannel(name))
		} else {
			h.tell(c, "Usage: /join #room")
		}
	case "voice":
		if name, ok := roomName(rest); ok {
			h.join(c, VoiceChannel(name))
		} else {
			h.tell(c, "Usage: /voice room")
		}
	case "msg", "m":
		h.direct(ctx, c, rest)
	case "who":
		h.who(c)
	case "rooms":
		h.listRooms(c)
	case "help", "?":
		h.tell(c, strings.Join([]string{
			"/join #room       talk in a text room",
			"/voice room       enter a voice room",
			"/msg user text    send a direct message",
			"/who              list people in your room",
			"/rooms            list open rooms",
			"/quit             leave",
		}, "\n"))
	default:
		h.tell(c, fmt.Sprintf("Unknown command /%s. Type /help.", verb))
	}
	return false
}

func roomName(arg string) (string, bool) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(arg), "#"))
	return name, roomPattern.MatchString(name)
}

func (h *Hub) direct(ctx context.Context, c *client, args string) {
	name, text, _ := strings.Cut(args, " ")
	text = strings.TrimSpace(text)
	if name == "" || text == "" {
		h.tell(c, "Usage: /msg user text")
		return
	}
	target, ok := h.LookupUser(name)
	if !ok {
		h.tell(c, fmt.Sprintf("No one called %s is here.", name))
		return
	}
	if target.ID == c.author.ID {
		h.tell(c, "Talking to yourself?")
		return
	}
	ch := DirectChannel(c.author, target)

	h.mu.Lock()
	peer := h.clients[strings.ToLower(target.Name)]
	sink := h.sink
	h.mu.Unlock()

	if peer != nil {
		h.tell(peer, fmt.Sprintf("[dm] %s: %s", telnet.Colorize(telnet.Bold, c.author.Name), text))
	}
	h.tell(c, fmt.Sprintf("[dm -> %s] %s", target.Name, text))
	h.emit(ctx, sink, c.author, ch, text)
}

func (h *Hub) who(c *client) {
	h.mu.Lock()
	r := c.room
	var members []*client
	if r != nil {
		members = r.list(nil)
	}
	h.mu.Unlock()
	if r == nil {
		h.tell(c, "You are not in a room.")
		return
	}
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.author.Name)
	}
	sort.Strings(names)
	h.tell(c, fmt.Sprintf("In %s: %s", label(r.channel), strings.Join(names, ", ")))
}

func (h *Hub) listRooms(c *client) {
	h.mu.Lock()
	lines := make([]string, 0, len(h.rooms))
	for _, r := range h.rooms {
		lines = append(lines, fmt.Sprintf("%s (%d)", label(r.channel), len(r.members)))
	}
	h.mu.Unlock()
	sort.Strings(lines)
	h.tell(c, "Rooms: "+strings.Join(lines, ", "))
}

// tell queues text for c without blocking. Lines to a user whose outbox
// is full are dropped.
func (h *Hub) tell(c *client, text string) {
	select {
	case c.outbox <- text:
	default:
		h.logger.Warn("outbox full, dropping line", zap.String("user", c.author.Name))
	}
}

// writeLoop is the only writer of c.conn once the user has logged in. It
// flushes what is queued when c.done closes, then closes c.flushed.
func (h *Hub) writeLoop(c *client) {
	defer close(c.flushed)
	for {
		select {
		case line := <-c.outbox:
			if !h.write(c, line) {
				return
			}
		case <-c.done:
			for {
				select {
				case line := <-c.outbox:
					if !h.write(c, line) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) write(c *client, line string) bool {
	if err := c.conn.WriteLine(line); err != nil {
		h.logger.Debug("writing to user", zap.String("user", c.author.Name), zap.Error(err))
		return false
	}
	return true
}

func (h *Hub) broadcast(to []*client, text string) {
	for _, c := range to {
		h.tell(c, text)
	}
}

// track records msg as the most recently touched message of r and forgets
// the oldest ones beyond maxTrackedPerRoom. Callers hold the hub lock.
func (h *Hub) track(r *room, msg chat.Message) {
	h.messages[msg.ID] = msg
	r.forget(msg.ID)
	r.posted = append(r.posted, msg.ID)
	for len(r.posted) > maxTrackedPerRoom {
		delete(h.messages, r.posted[0])
		r.posted = slices.Delete(r.posted, 0, 1)
	}
}

func (r *room) forget(id chat.MessageID) {
	if i := slices.Index(r.posted, id); i >= 0 {
		r.posted = slices.Delete(r.posted, i, i+1)
	}
}

// list returns the members of r except skip. Callers hold the hub lock.
func (r *room) list(skip *client) []*client {
	out := make([]*client, 0, len(r.members))
	for m := range r.members {
		if m != skip {
			out = append(out, m)
		}
	}
	return out
}
