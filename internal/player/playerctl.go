package player

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"lyricsync/internal/event"
	"lyricsync/internal/track"
)

// Runner 执行一次 playerctl 命令并返回去掉首尾空白的输出
type Runner func(ctx context.Context, args ...string) (string, error)

func execRunner(ctx context.Context, args ...string) (string, error) {
	output, err := exec.CommandContext(ctx, "playerctl", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

const (
	metadataFormat = "{{xesam:title}}\t{{xesam:artist}}\t{{xesam:album}}"
	commandTimeout = 2 * time.Second
)

type pollState struct {
	status   string
	meta     string
	duration float64
	position float64
	at       time.Time
}

// Playerctl polls the playerctl CLI and turns what it sees into media events.
type Playerctl struct {
	run      Runner
	player   string
	interval time.Duration
	now      func() time.Time

	subs event.Emitter[Event]

	mu   sync.Mutex
	last pollState
	stop chan struct{}
}

// NewPlayerctl player 为空时由 playerctl 自己选择活跃的播放器
func NewPlayerctl(player string, interval time.Duration) *Playerctl {
	return newPlayerctl(execRunner, player, interval)
}

func newPlayerctl(run Runner, player string, interval time.Duration) *Playerctl {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Playerctl{run: run, player: player, interval: interval, now: time.Now}
}

func (p *Playerctl) Name() string {
	if p.player == "" {
		return "playerctl"
	}
	return "playerctl:" + p.player
}

func (p *Playerctl) command(args ...string) (string, error) {
	if p.player != "" {
		args = append([]string{"--player", p.player}, args...)
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return p.run(ctx, args...)
}

func (p *Playerctl) Available() bool {
	status, err := p.command("status")
	return err == nil && status != "" && status != "Stopped"
}

func (p *Playerctl) Metadata() (track.Info, error) {
	out, err := p.command("metadata", "--format", metadataFormat)
	if err != nil {
		return track.Info{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	fields := strings.Split(out, "\t")
	for len(fields) < 3 {
		fields = append(fields, "")
	}
	return track.Info{
		Title:  strings.TrimSpace(fields[0]),
		Artist: strings.TrimSpace(fields[1]),
		Album:  strings.TrimSpace(fields[2]),
	}, nil
}

func (p *Playerctl) Byline() (string, string, error) {
	out, err := p.command("metadata", "--format", "{{xesam:title}}\t{{artist}}")
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	title, byline, _ := strings.Cut(out, "\t")
	return strings.TrimSpace(title), strings.TrimSpace(byline), nil
}

func (p *Playerctl) Duration() float64 {
	out, err := p.command("metadata", "mpris:length")
	if err != nil {
		return 0
	}
	us, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return 0
	}
	return microsToSeconds(us)
}

func (p *Playerctl) position() (float64, error) {
	out, err := p.command("position")
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(out, 64)
}

// Subscribe starts the poll loop with the first subscriber and stops it when
// the last one leaves.
func (p *Playerctl) Subscribe(fn func(Event)) (func(), error) {
	if !p.Available() {
		return nil, ErrUnavailable
	}

	unsubscribe := p.subs.Subscribe(fn)

	p.mu.Lock()
	if p.stop == nil {
		p.stop = make(chan struct{})
		p.last = pollState{}
		go p.loop(p.stop)
	}
	p.mu.Unlock()

	return func() {
		unsubscribe()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.subs.Len() == 0 && p.stop != nil {
			close(p.stop)
			p.stop = nil
		}
	}, nil
}

func (p *Playerctl) loop(stop chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := p.Poll(); err != nil {
				logger.Debug().Err(err).Msg("playerctl poll failed")
			}
		}
	}
}

// Poll reads the player once and emits the events implied by the difference
// from the previous poll.
func (p *Playerctl) Poll() error {
	status, err := p.command("status")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	meta, _ := p.command("metadata", "--format", metadataFormat)
	duration := p.Duration()
	pos, err := p.position()
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	now := p.now()

	p.mu.Lock()
	prev := p.last
	p.last = pollState{status: status, meta: meta, duration: duration, position: pos, at: now}
	p.mu.Unlock()

	var events []Event
	if meta != prev.meta {
		events = append(events, Event{Type: EventMetadata})
	}
	if duration != prev.duration {
		events = append(events, Event{Type: EventDurationChange, Duration: duration})
	}

	playing := status == "Playing"
	wasPlaying := prev.status == "Playing"
	switch {
	case playing && !wasPlaying:
		events = append(events, Event{Type: EventPlay, Position: pos})
	case !playing && wasPlaying:
		events = append(events, Event{Type: EventPause, Position: pos})
	case !prev.at.IsZero():
		expected := prev.position
		if playing {
			expected += now.Sub(prev.at).Seconds()
		}
		if abs(pos-expected) > seekThreshold {
			events = append(events, Event{Type: EventSeeking, Position: pos})
		}
	}
	if playing || pos != prev.position {
		events = append(events, Event{Type: EventTimeUpdate, Position: pos})
	}

	for _, e := range events {
		p.subs.Emit(e)
	}
	return nil
}
