package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/ai"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/tictactoe"
	"github.com/cory-johannsen/tictactoe-bot/internal/messaging"
)

var (
	// ErrClosed is returned by a game channel that has already been evicted.
	// Callers fetch a fresh one from the registry and retry.
	ErrClosed = errors.New("game channel closed")
	// ErrBusy is returned when a game or challenge is already running.
	ErrBusy = errors.New("a game is already running in this channel")
	// ErrNoGame is returned when there is nothing to play or stop.
	ErrNoGame = errors.New("no game is running in this channel")
	// ErrNoChallenge is returned by Accept without a pending duel.
	ErrNoChallenge = errors.New("no pending challenge in this channel")
	// ErrNotInvited is returned when someone other than the invitee accepts.
	ErrNotInvited = errors.New("this challenge is not for you")
	// ErrSelfChallenge is returned when a user challenges themselves.
	ErrSelfChallenge = errors.New("you cannot challenge yourself")
	// ErrChallengeAutomated is returned when the invitee is a bot account.
	ErrChallengeAutomated = errors.New("bots cannot be challenged")
	// ErrNotParticipant is returned when an outsider tries to stop a game.
	ErrNotParticipant = errors.New("only players can stop this game")
)

const (
	DefaultGameExpiry = 5 * time.Minute
	DefaultDuelExpiry = time.Minute

	// callbackTimeout bounds platform calls made from expiry callbacks.
	callbackTimeout = 10 * time.Second
)

// Settings are the per-game policies of a game channel.
type Settings struct {
	GameExpiry time.Duration
	DuelExpiry time.Duration
	// BotName is the display name of the AI player.
	BotName string
	// Prefix is the command prefix quoted in prompts.
	Prefix string
}

// Deps are shared by every game channel built by one factory.
type Deps struct {
	Settings Settings
	Recorder ResultRecorder
	Observer Observer
	Logger   *zap.Logger
	// NewID returns a fresh game ID. Defaults to uuid.NewString.
	NewID func() string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewFactory returns a registry factory producing game channels that
// share deps. Nil optional fields get defaults.
//
// Precondition: deps.Logger must be non-nil.
func NewFactory(deps Deps) Factory {
	if deps.Recorder == nil {
		deps.Recorder = NopRecorder{}
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Settings.GameExpiry <= 0 {
		deps.Settings.GameExpiry = DefaultGameExpiry
	}
	if deps.Settings.DuelExpiry <= 0 {
		deps.Settings.DuelExpiry = DefaultDuelExpiry
	}
	return func(reg *Registry, channel chat.Channel) *GameChannel {
		return &GameChannel{
			reg:     reg,
			channel: channel,
			deps:    deps,
			timer:   NewExpiryTimer(),
			logger:  deps.Logger.With(zap.String("channel", string(channel.ID))),
		}
	}
}

type duel struct {
	challenger chat.Author
	invitee    chat.Author
	tunnel     messaging.Tunnel
}

// Status is a point-in-time view of a game channel.
type Status struct {
	Closed  bool
	Pending bool
	InGame  bool
	GameID  string
	Players [2]tictactoe.Player
	Moves   int
}

// GameChannel owns the game state of one chat channel. A mutex
// serializes every action on it, including its platform calls.
type GameChannel struct {
	mu      sync.Mutex
	reg     *Registry
	channel chat.Channel
	deps    Deps
	timer   *ExpiryTimer
	logger  *zap.Logger

	closed bool
	// gen changes whenever a game or duel starts or ends; expiry callbacks
	// compare it to detect that they are stale.
	gen       uint64
	duel      *duel
	game      *tictactoe.Game
	tunnel    messaging.Tunnel
	strategy  ai.Strategy
	profile   string
	startedAt time.Time
}

// Channel returns the chat channel this game channel serves.
func (gc *GameChannel) Channel() chat.Channel {
	return gc.channel
}

// Status returns a snapshot of the channel's state.
func (gc *GameChannel) Status() Status {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	st := Status{Closed: gc.closed, Pending: gc.duel != nil}
	if gc.game != nil {
		st.InGame = true
		st.GameID = gc.game.ID()
		st.Players = gc.game.Players()
		st.Moves = gc.game.Moves()
	}
	return st
}

// Challenge opens a duel invitation from tun's author to invitee. The
// invitation is posted through tun, which later carries the board.
//
// Postcondition: On error no duel is pending.
func (gc *GameChannel) Challenge(ctx context.Context, tun messaging.Tunnel, invitee chat.Author) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.closed {
		return ErrClosed
	}
	if gc.busy() {
		return ErrBusy
	}
	challenger := tun.Author()
	if invitee.ID == challenger.ID {
		gc.closeLocked()
		return ErrSelfChallenge
	}
	if invitee.Automated {
		gc.closeLocked()
		return ErrChallengeAutomated
	}

	gc.duel = &duel{challenger: challenger, invitee: invitee, tunnel: tun}
	gc.gen++
	if _, err := tun.ReplyWith(ctx, RenderChallenge(challenger, invitee, gc.deps.Settings.Prefix, gc.deps.Settings.DuelExpiry)); err != nil {
		gc.duel = nil
		gc.closeLocked()
		return fmt.Errorf("posting challenge: %w", err)
	}
	gen := gc.gen
	gc.timer.Arm(gc.deps.Settings.DuelExpiry, func() { gc.expire(gen, "challenge expired") })
	gc.logger.Info("duel offered",
		zap.String("challenger", challenger.Name),
		zap.String("invitee", invitee.Name),
	)
	return nil
}

// Accept starts the pending duel. The challenger plays X.
//
// Postcondition: If the board cannot be posted the challenge stays pending
// with its expiry untouched, so the invitee can accept again. Only when the
// channel itself is gone is the duel dropped and the channel evicted.
func (gc *GameChannel) Accept(ctx context.Context, author chat.Author) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.closed {
		return ErrClosed
	}
	if gc.duel == nil {
		if gc.game == nil {
			gc.closeLocked()
		}
		return ErrNoChallenge
	}
	if author.ID != gc.duel.invitee.ID {
		return ErrNotInvited
	}

	d := gc.duel
	g, err := tictactoe.New(gc.deps.NewID(), playerOf(d.challenger), playerOf(author))
	if err != nil {
		return err
	}
	gc.duel = nil
	if err := gc.begin(ctx, g, d.tunnel, nil, ""); err != nil {
		if errors.Is(err, chat.ErrUnknownChannel) {
			if endErr := d.tunnel.End(ctx, "channel gone"); endErr != nil {
				gc.logger.Warn("retracting challenge failed", zap.Error(endErr))
			}
			gc.closeLocked()
			return err
		}
		gc.duel = d
		gc.logger.Warn("duel board failed, challenge kept", zap.Error(err))
		return err
	}
	return nil
}

// StartAI starts a game between tun's author (X) and the AI of profile.
func (gc *GameChannel) StartAI(ctx context.Context, tun messaging.Tunnel, profile string, strategy ai.Strategy) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.closed {
		return ErrClosed
	}
	if gc.busy() {
		return ErrBusy
	}
	bot := tictactoe.Player{ID: "ai:" + profile, Name: gc.deps.Settings.BotName, AI: true}
	g, err := tictactoe.New(gc.deps.NewID(), playerOf(tun.Author()), bot)
	if err != nil {
		return err
	}
	if err := gc.begin(ctx, g, tun, strategy, profile); err != nil {
		gc.closeLocked()
		return err
	}
	return nil
}

// begin installs g and posts its first board. On failure the channel is
// left as it was before the call, timers and generation included.
//
// Precondition: gc.mu is held.
func (gc *GameChannel) begin(ctx context.Context, g *tictactoe.Game, tun messaging.Tunnel, strategy ai.Strategy, profile string) error {
	prevGen := gc.gen
	gc.game, gc.tunnel, gc.strategy, gc.profile = g, tun, strategy, profile
	gc.startedAt = gc.deps.Now()
	gc.gen++
	if _, err := tun.ReplyWith(ctx, RenderBoard(g)); err != nil {
		gc.game, gc.tunnel, gc.strategy, gc.profile = nil, nil, nil, ""
		gc.gen = prevGen
		return fmt.Errorf("posting board: %w", err)
	}
	gc.armGameExpiry()
	players := g.Players()
	gc.logger.Info("game started",
		zap.String("game_id", g.ID()),
		zap.String("x", players[0].Name),
		zap.String("o", players[1].Name),
		zap.String("profile", profile),
	)
	return nil
}

// Play places author's mark on cell (0..8) and, in games against the AI,
// answers with the AI's move. The updated board is posted through the
// game's tunnel.
//
// Postcondition: If posting the board fails, every move made by this call
// is undone and the game stays registered, so the player can retry.
// When the game ends the result is recorded and the channel is evicted.
func (gc *GameChannel) Play(ctx context.Context, author chat.Author, cell int) (tictactoe.Outcome, error) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.closed {
		return tictactoe.Outcome{}, ErrClosed
	}
	if gc.game == nil {
		if gc.duel == nil {
			gc.closeLocked()
		}
		return tictactoe.Outcome{}, ErrNoGame
	}

	g := gc.game
	out, err := g.Move(string(author.ID), cell)
	if err != nil {
		return out, err
	}
	made := 1

	if out.State == tictactoe.InProgress && gc.strategy != nil {
		aiCell, err := gc.strategy.ChooseMove(ctx, g.Board(), g.Turn())
		if err == nil {
			out, err = g.Move(g.Current().ID, aiCell)
		}
		if err != nil {
			gc.rollback(made)
			return tictactoe.Outcome{}, fmt.Errorf("ai move: %w", err)
		}
		made++
	}

	if _, err := gc.tunnel.ReplyWith(ctx, RenderBoard(g)); err != nil {
		gc.rollback(made)
		gc.logger.Warn("board update failed, move rolled back",
			zap.String("game_id", g.ID()),
			zap.Error(err),
		)
		return tictactoe.Outcome{}, fmt.Errorf("posting board: %w", err)
	}

	if out.State == tictactoe.InProgress {
		gc.armGameExpiry()
		return out, nil
	}
	gc.finish(ctx, out)
	return out, nil
}

// Cancel stops the running game or pending duel on behalf of author,
// retracting its message.
//
// Postcondition: Unless an error other than a delivery failure is
// returned, the channel is closed and evicted.
func (gc *GameChannel) Cancel(ctx context.Context, author chat.Author, reason string) error {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.closed {
		return ErrClosed
	}

	var tun messaging.Tunnel
	switch {
	case gc.game != nil:
		if _, ok := gc.game.MarkOf(string(author.ID)); !ok {
			return ErrNotParticipant
		}
		tun = gc.tunnel
	case gc.duel != nil:
		if author.ID != gc.duel.challenger.ID && author.ID != gc.duel.invitee.ID {
			return ErrNotParticipant
		}
		tun = gc.duel.tunnel
	default:
		gc.closeLocked()
		return ErrNoGame
	}

	err := tun.End(ctx, reason)
	gc.logger.Info("game cancelled",
		zap.String("by", author.Name),
		zap.String("reason", reason),
	)
	gc.closeLocked()
	if err != nil {
		return fmt.Errorf("retracting game message: %w", err)
	}
	return nil
}

// Close cancels whatever is running without an author, retracting its
// message, and evicts the channel. It is used at shutdown.
func (gc *GameChannel) Close() {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.closed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	gc.retract(ctx, "shutting down")
	gc.closeLocked()
}

func (gc *GameChannel) expire(gen uint64, reason string) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.closed || gc.gen != gen {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	gc.logger.Info("game channel expired", zap.String("reason", reason))
	gc.retract(ctx, reason)
	gc.closeLocked()
}

// retract ends the tunnel of the running game or duel.
//
// Precondition: gc.mu is held.
func (gc *GameChannel) retract(ctx context.Context, reason string) {
	var tun messaging.Tunnel
	switch {
	case gc.game != nil:
		tun = gc.tunnel
	case gc.duel != nil:
		tun = gc.duel.tunnel
	default:
		return
	}
	if err := tun.End(ctx, reason); err != nil {
		gc.logger.Warn("retracting game message failed", zap.Error(err))
	}
}

// finish records a concluded game and closes the channel. The final board
// stays visible.
//
// Precondition: gc.mu is held; out.State is not InProgress.
func (gc *GameChannel) finish(ctx context.Context, out tictactoe.Outcome) {
	g := gc.game
	players := g.Players()
	res := Result{
		GameID:     g.ID(),
		ChannelID:  gc.channel.ID,
		PlayerX:    players[0],
		PlayerO:    players[1],
		Draw:       out.State == tictactoe.Draw,
		Moves:      g.Moves(),
		Profile:    gc.profile,
		StartedAt:  gc.startedAt,
		FinishedAt: gc.deps.Now(),
	}
	if out.Winner != nil {
		res.WinnerID = out.Winner.ID
	}
	if err := gc.deps.Recorder.RecordResult(ctx, res); err != nil {
		gc.logger.Error("recording game result", zap.String("game_id", g.ID()), zap.Error(err))
	}
	gc.deps.Observer.GameFinished(res)
	gc.logger.Info("game finished",
		zap.String("game_id", g.ID()),
		zap.String("state", out.State.String()),
		zap.String("winner", res.WinnerID),
		zap.Int("moves", res.Moves),
	)
	gc.closeLocked()
}

// closeLocked marks the channel closed and removes it from the registry.
//
// Precondition: gc.mu is held.
func (gc *GameChannel) closeLocked() {
	gc.timer.Stop()
	gc.closed = true
	gc.gen++
	gc.duel = nil
	gc.game = nil
	gc.tunnel = nil
	gc.strategy = nil
	gc.reg.Evict(gc)
}

func (gc *GameChannel) rollback(n int) {
	for i := 0; i < n; i++ {
		if err := gc.game.Undo(); err != nil {
			gc.logger.Error("undo failed", zap.Error(err))
			return
		}
	}
}

func (gc *GameChannel) armGameExpiry() {
	gen := gc.gen
	gc.timer.Arm(gc.deps.Settings.GameExpiry, func() { gc.expire(gen, "game expired") })
}

func (gc *GameChannel) busy() bool {
	return gc.game != nil || gc.duel != nil
}

func playerOf(a chat.Author) tictactoe.Player {
	return tictactoe.Player{ID: string(a.ID), Name: a.Name}
}
