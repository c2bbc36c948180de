package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyricsync/internal/clock"
	"lyricsync/internal/lyrics"
	"lyricsync/internal/player"
	"lyricsync/internal/settings"
	"lyricsync/internal/song"
	"lyricsync/internal/track"
	"lyricsync/internal/tracker"
)

const (
	StatusWaitingForDuration = "Waiting for duration..."
	StatusFetching           = "Fetching lyrics..."
	StatusNotFound           = "No lyrics found"
)

// Surface renders the session. All methods must be safe to call repeatedly.
type Surface interface {
	Mount()
	Unmount()
	SetLines(lines []lyrics.Line)
	SetPlain(lines []string)
	SetStatus(msg string)
	Highlight(index int, line lyrics.Line)
	Show()
	Hide()
}

// SessionOptions 会话的依赖和时间参数
type SessionOptions struct {
	Source   player.Source
	Provider *lyrics.Provider
	Surface  Surface
	Settings *settings.Manager

	AttachInterval time.Duration
	FrameInterval  time.Duration
	SettleDelay    time.Duration
	FetchTimeout   time.Duration
	LatencyBias    float64 // 秒
}

// state 会话中所有可变的数据
type state struct {
	song     track.Info
	settings settings.Settings
	token    lyrics.Token
	lines    []lyrics.Line
	translit []string
}

// Session connects a player to the lyrics pipeline: player events drive the
// clock and the song detector, song changes start fetches, and the clock's
// time stream drives the line tracker and the surface.
type Session struct {
	id     string
	opts   SessionOptions
	logger zerolog.Logger

	clock    *clock.Clock
	detector *song.Detector
	tracker  *tracker.Tracker
	binder   *player.Binder

	mu     sync.Mutex
	st     state
	ctx    context.Context
	unsubs []func()
	closed bool
	wg     sync.WaitGroup
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Source == nil || opts.Provider == nil || opts.Surface == nil || opts.Settings == nil {
		return nil, errors.New("session requires a source, provider, surface and settings manager")
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}

	id := uuid.NewString()
	s := &Session{
		id:       id,
		opts:     opts,
		logger:   log.With().Str("component", "session").Str("session_id", id).Logger(),
		clock:    clock.New(),
		detector: song.ForSource(opts.Source, opts.SettleDelay),
		tracker:  tracker.New(),
		ctx:      context.Background(),
		st:       state{settings: opts.Settings.Current()},
	}
	s.binder = player.NewBinder(opts.Source, opts.AttachInterval, s.handlePlayerEvent)

	s.unsubs = append(s.unsubs,
		s.binder.Changes().Subscribe(s.onAttachChange),
		s.detector.Changes().Subscribe(s.onSongChange),
		s.clock.Ticks().Subscribe(s.onTime),
		s.tracker.Changes().Subscribe(s.onLineChange),
		opts.Settings.Changes().Subscribe(s.onSettings),
	)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Run blocks until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info().Str("source", s.opts.Source.Name()).Msg("Session started")
	s.onSettings(s.opts.Settings.Current())

	go s.clock.Run(ctx, s.opts.FrameInterval)
	s.binder.Run(ctx)

	s.Close()
	s.logger.Info().Msg("Session stopped")
}

// Close 解除所有订阅并等待进行中的请求结束
func (s *Session) Close() {
	s.detector.Stop()
	s.binder.Detach()

	s.mu.Lock()
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}

	s.wg.Wait()
	s.opts.Surface.Unmount()
}

func (s *Session) handlePlayerEvent(e player.Event) {
	s.clock.Handle(e)
	s.detector.Handle(e)
}

func (s *Session) onAttachChange(attached bool) {
	if attached {
		s.opts.Surface.Mount()
		s.detector.Reset()
		s.detector.Notify()
		return
	}
	s.detector.Stop()
	s.opts.Surface.Unmount()
}

func (s *Session) onSettings(st settings.Settings) {
	s.mu.Lock()
	s.st.settings = st
	s.mu.Unlock()

	if st.Enabled {
		s.opts.Surface.Show()
		s.syncNow()
	} else {
		s.opts.Surface.Hide()
	}
}

// adjust 加上用户偏移和固定的延迟补偿
func (s *Session) adjust(t float64, st settings.Settings) float64 {
	return t + st.OffsetSeconds() + s.opts.LatencyBias
}

func (s *Session) onTime(t float64) {
	s.mu.Lock()
	st := s.st.settings
	s.mu.Unlock()

	if !st.Enabled {
		return
	}
	s.tracker.OnTime(s.adjust(t, st))
}

// syncNow evaluates the tracker at the current position without waiting for
// the next tick. Nothing happens until the player has reported a position.
func (s *Session) syncNow() {
	if s.clock.State().LastSample.IsZero() {
		return
	}
	s.onTime(s.clock.Current())
}

func (s *Session) onLineChange(c tracker.Change) {
	line := c.Line
	s.mu.Lock()
	if c.Index >= 0 && c.Index < len(s.st.translit) && s.st.translit[c.Index] != "" {
		line.Text = fmt.Sprintf("%s (%s)", line.Text, s.st.translit[c.Index])
	}
	s.mu.Unlock()

	s.opts.Surface.Highlight(c.Index, line)
}

func (s *Session) onSongChange(info track.Info) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Close 之后 detector 的定时器可能还在投递
	if s.closed {
		return
	}

	token := s.opts.Provider.Begin()
	s.st.song = info
	s.st.token = token
	s.st.lines = nil
	s.st.translit = nil
	s.tracker.SetLines(nil)

	logger := s.logger.With().Str("song", info.String()).Uint64("token", uint64(token)).Logger()

	if info.Artist == "" {
		logger.Warn().Msg("Song has no artist, cannot look up lyrics")
		s.opts.Surface.SetStatus(StatusNotFound)
		return
	}
	if !info.HasDuration() {
		logger.Info().Msg("Waiting for duration")
		s.opts.Surface.SetStatus(StatusWaitingForDuration)
		return
	}

	s.opts.Surface.SetLines(nil)
	s.opts.Surface.SetStatus(StatusFetching)

	s.wg.Add(1)
	go s.fetch(s.ctx, token, info)
}

func (s *Session) fetch(parent context.Context, token lyrics.Token, info track.Info) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(parent, s.opts.FetchTimeout)
	defer cancel()

	l, err := s.opts.Provider.GetLyrics(ctx, token, info)
	if errors.Is(err, lyrics.ErrStale) {
		s.logger.Debug().Str("song", info.String()).Msg("Dropping superseded lyrics result")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("song", info.String()).Msg("Failed to get lyrics")
		l = nil
	}
	s.apply(parent, token, l)
}

// apply installs a fetch result if token is still the session's token.
func (s *Session) apply(ctx context.Context, token lyrics.Token, l *lyrics.Lyrics) {
	s.mu.Lock()
	if s.st.token != token || !s.opts.Provider.IsCurrent(token) {
		s.mu.Unlock()
		return
	}

	switch {
	case l != nil && l.HasSynced():
		s.st.lines = l.Synced
		s.tracker.SetLines(l.Synced)
		s.opts.Surface.SetLines(l.Synced)
		s.logger.Info().Int("lines_count", len(l.Synced)).Str("song", s.st.song.String()).Msg("Lyrics set")
	case l != nil && l.Plain != "":
		s.opts.Surface.SetPlain(lyrics.PlainLines(l.Plain))
		s.logger.Info().Str("song", s.st.song.String()).Msg("Only plain lyrics available")
		s.mu.Unlock()
		return
	default:
		s.opts.Surface.SetStatus(StatusNotFound)
		s.mu.Unlock()
		return
	}
	lines := s.st.lines
	s.mu.Unlock()

	s.syncNow()

	if s.opts.Provider.CanTransliterate() && lyrics.NeedsTransliteration(lines) {
		s.wg.Add(1)
		go s.transliterate(ctx, token, lines)
	}
}

func (s *Session) transliterate(ctx context.Context, token lyrics.Token, lines []lyrics.Line) {
	defer s.wg.Done()

	out, err := s.opts.Provider.Transliterate(ctx, token, lines)
	if err != nil {
		if !errors.Is(err, lyrics.ErrStale) {
			s.logger.Warn().Err(err).Msg("Transliteration failed")
		}
		return
	}

	s.mu.Lock()
	if s.st.token != token {
		s.mu.Unlock()
		return
	}
	s.st.translit = out
	s.mu.Unlock()

	// 重新显示当前行以带上转写
	index := s.tracker.Index()
	if index >= 0 && index < len(lines) {
		s.onLineChange(tracker.Change{Index: index, Line: lines[index]})
	}
}

// HandleCommand implements the control commands accepted on the IPC socket.
func (s *Session) HandleCommand(cmd string, args []string) (string, error) {
	ctx := context.Background()
	var (
		st  settings.Settings
		err error
	)

	switch cmd {
	case "enable":
		st, err = s.opts.Settings.SetEnabled(ctx, true)
	case "disable":
		st, err = s.opts.Settings.SetEnabled(ctx, false)
	case "toggle":
		st, err = s.opts.Settings.Toggle(ctx)
	case "offset":
		if len(args) != 1 {
			return "", errors.New("usage: offset <ms>")
		}
		ms, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return "", fmt.Errorf("invalid offset %q", args[0])
		}
		st, err = s.opts.Settings.SetOffset(ctx, ms)
	case "status":
		st = s.opts.Settings.Current()
	case "song":
		s.mu.Lock()
		info := s.st.song
		s.mu.Unlock()
		return info.String(), nil
	default:
		return "", fmt.Errorf("unknown command %s", cmd)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("enabled=%t offset=%d", st.Enabled, st.OffsetMs), nil
}
