package player

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"lyricsync/internal/event"
	"lyricsync/internal/track"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisPrefix      = "org.mpris.MediaPlayer2."
)

// MPRIS listens to a player over the session bus. Signals cover metadata,
// playback status and seeks; the position is polled because MPRIS does not
// push it.
type MPRIS struct {
	bus      *dbus.Conn
	service  string
	interval time.Duration

	subs event.Emitter[Event]

	mu      sync.Mutex
	active  string
	stop    chan struct{}
	signals chan *dbus.Signal
	playing bool
}

// ConnectMPRIS 连接 session bus。service 为空时自动选择第一个 MPRIS 播放器
func ConnectMPRIS(service string, interval time.Duration) (*MPRIS, error) {
	bus, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return NewMPRIS(bus, service, interval)
}

func NewMPRIS(bus *dbus.Conn, service string, interval time.Duration) (*MPRIS, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if service != "" && !strings.HasPrefix(service, mprisPrefix) {
		service = mprisPrefix + service
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &MPRIS{bus: bus, service: service, interval: interval}, nil
}

func (m *MPRIS) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != "" {
		return m.active
	}
	if m.service != "" {
		return m.service
	}
	return "mpris"
}

func (m *MPRIS) resolve() (string, error) {
	if m.service != "" {
		var owned bool
		err := m.bus.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, m.service).Store(&owned)
		if err != nil {
			return "", fmt.Errorf("name has owner: %w", err)
		}
		if !owned {
			return "", ErrUnavailable
		}
		return m.service, nil
	}

	var names []string
	if err := m.bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return "", fmt.Errorf("list names: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			return name, nil
		}
	}
	return "", ErrUnavailable
}

func (m *MPRIS) Available() bool {
	_, err := m.resolve()
	return err == nil
}

func (m *MPRIS) object() (dbus.BusObject, error) {
	m.mu.Lock()
	service := m.active
	m.mu.Unlock()

	if service == "" {
		var err error
		if service, err = m.resolve(); err != nil {
			return nil, err
		}
	}
	return m.bus.Object(service, mprisPath), nil
}

func (m *MPRIS) metadata() (map[string]dbus.Variant, error) {
	obj, err := m.object()
	if err != nil {
		return nil, err
	}
	prop, err := obj.GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata property: %w", err)
	}
	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("unexpected metadata type %T", prop.Value())
	}
	return metadata, nil
}

func (m *MPRIS) Metadata() (track.Info, error) {
	metadata, err := m.metadata()
	if err != nil {
		return track.Info{}, err
	}
	return track.Info{
		Title:  extractString(metadata, "xesam:title"),
		Artist: extractArtist(metadata, "xesam:artist"),
		Album:  extractString(metadata, "xesam:album"),
	}, nil
}

func (m *MPRIS) Byline() (string, string, error) {
	metadata, err := m.metadata()
	if err != nil {
		return "", "", err
	}
	return extractString(metadata, "xesam:title"), extractArtists(metadata, "xesam:artist"), nil
}

func (m *MPRIS) Duration() float64 {
	metadata, err := m.metadata()
	if err != nil {
		return 0
	}
	return extractDuration(metadata, "mpris:length")
}

func (m *MPRIS) position() (float64, error) {
	obj, err := m.object()
	if err != nil {
		return 0, err
	}
	prop, err := obj.GetProperty(mprisPlayerIface + ".Position")
	if err != nil {
		return 0, fmt.Errorf("failed to get position property: %w", err)
	}
	us, ok := prop.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", prop.Value())
	}
	return microsToSeconds(us), nil
}

func (m *MPRIS) playbackStatus() string {
	obj, err := m.object()
	if err != nil {
		return ""
	}
	prop, err := obj.GetProperty(mprisPlayerIface + ".PlaybackStatus")
	if err != nil {
		return ""
	}
	status, _ := prop.Value().(string)
	return status
}

func (m *MPRIS) matchRules(service string) []string {
	return []string{
		fmt.Sprintf(
			"type='signal',sender='%s',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='%s'",
			service, mprisPath,
		),
		fmt.Sprintf(
			"type='signal',sender='%s',interface='%s',member='Seeked',path='%s'",
			service, mprisPlayerIface, mprisPath,
		),
	}
}

// Subscribe adds the bus match rules with the first subscriber and removes
// them when the last one leaves.
func (m *MPRIS) Subscribe(fn func(Event)) (func(), error) {
	m.mu.Lock()
	if m.stop == nil {
		service, err := m.resolve()
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
		for _, rule := range m.matchRules(service) {
			if err := m.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
				m.mu.Unlock()
				return nil, fmt.Errorf("failed to add match: %w", err)
			}
		}
		m.active = service
		m.signals = make(chan *dbus.Signal, 16)
		m.bus.Signal(m.signals)
		m.stop = make(chan struct{})
		m.playing = false
		go m.loop(m.stop, m.signals)
		logger.Info().Str("service", service).Msg("Attached to MPRIS player")
	}
	m.mu.Unlock()

	unsubscribe := m.subs.Subscribe(fn)
	m.syncState()

	return func() {
		unsubscribe()
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.subs.Len() > 0 || m.stop == nil {
			return
		}
		for _, rule := range m.matchRules(m.active) {
			m.bus.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)
		}
		m.bus.RemoveSignal(m.signals)
		close(m.stop)
		m.stop = nil
		m.active = ""
	}, nil
}

// syncState emits the current state so a fresh subscriber does not wait for
// the next signal.
func (m *MPRIS) syncState() {
	m.subs.Emit(Event{Type: EventMetadata})
	if d := m.Duration(); d > 0 {
		m.subs.Emit(Event{Type: EventDurationChange, Duration: d})
	}
	pos, _ := m.position()
	if m.playbackStatus() == "Playing" {
		m.setPlaying(true)
		m.subs.Emit(Event{Type: EventPlay, Position: pos})
	}
	m.subs.Emit(Event{Type: EventTimeUpdate, Position: pos})
}

func (m *MPRIS) setPlaying(v bool) {
	m.mu.Lock()
	m.playing = v
	m.mu.Unlock()
}

func (m *MPRIS) isPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *MPRIS) loop(stop chan struct{}, signals chan *dbus.Signal) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			m.handleSignal(sig)
		case <-ticker.C:
			if !m.isPlaying() {
				continue
			}
			pos, err := m.position()
			if err != nil {
				logger.Debug().Err(err).Msg("MPRIS position poll failed")
				continue
			}
			m.subs.Emit(Event{Type: EventTimeUpdate, Position: pos})
		}
	}
}

func (m *MPRIS) handleSignal(sig *dbus.Signal) {
	if sig == nil {
		return
	}

	switch sig.Name {
	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		m.handlePropertiesChanged(sig)
	case mprisPlayerIface + ".Seeked":
		if len(sig.Body) < 1 {
			return
		}
		us, ok := sig.Body[0].(int64)
		if !ok {
			return
		}
		pos := microsToSeconds(us)
		m.subs.Emit(Event{Type: EventSeeking, Position: pos})
		m.subs.Emit(Event{Type: EventTimeUpdate, Position: pos})
	}
}

func (m *MPRIS) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != mprisPlayerIface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if v, exists := changed["Metadata"]; exists {
		m.subs.Emit(Event{Type: EventMetadata})
		if metadata, ok := v.Value().(map[string]dbus.Variant); ok {
			m.subs.Emit(Event{Type: EventDurationChange, Duration: extractDuration(metadata, "mpris:length")})
		}
	}

	if v, exists := changed["PlaybackStatus"]; exists {
		status, ok := v.Value().(string)
		if !ok {
			return
		}
		pos, _ := m.position()
		playing := status == "Playing"
		m.setPlaying(playing)
		if playing {
			m.subs.Emit(Event{Type: EventPlay, Position: pos})
		} else {
			m.subs.Emit(Event{Type: EventPause, Position: pos})
		}
	}
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	text, _ := variant.Value().(string)
	return strings.TrimSpace(text)
}

// extractArtist 只取第一个艺术家
func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	switch typed := variant.Value().(type) {
	case []string:
		if len(typed) > 0 {
			return strings.TrimSpace(typed[0])
		}
	case string:
		return strings.TrimSpace(typed)
	}
	return ""
}

func extractArtists(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	switch typed := variant.Value().(type) {
	case []string:
		return joinArtists(typed)
	case string:
		return strings.TrimSpace(typed)
	}
	return ""
}

func extractDuration(metadata map[string]dbus.Variant, key string) float64 {
	variant, exists := metadata[key]
	if !exists {
		return 0
	}
	switch typed := variant.Value().(type) {
	case int64:
		return microsToSeconds(typed)
	case uint64:
		return microsToSeconds(int64(typed))
	}
	return 0
}
