package ipc

import (
	"strings"
	"sync"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/fileutil"
)

// Broadcaster 把一行文本发给所有客户端，Server 实现了它
type Broadcaster interface {
	Broadcast(line string)
}

// Refresher 在状态文件更新后通知状态栏，i3block.Controller 实现了它
type Refresher interface {
	Refresh() error
}

// Overlay renders the lyrics session as a stream of single lines: the
// highlighted lyric, a status message, or "" when hidden or unmounted.
type Overlay struct {
	out        Broadcaster
	outputFile string
	refresher  Refresher

	mu      sync.Mutex
	mounted bool
	hidden  bool
	mounts  int
	lines   []lyrics.Line
	plain   []string
	current string
	last    string
}

func NewOverlay(out Broadcaster) *Overlay {
	return &Overlay{out: out}
}

// WithStatusFile also writes every published line to path and calls r (which
// may be nil) afterwards.
func (o *Overlay) WithStatusFile(path string, r Refresher) *Overlay {
	o.outputFile = path
	o.refresher = r
	return o
}

// Mount is idempotent: mounting an already mounted overlay does nothing.
func (o *Overlay) Mount() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mounted {
		return
	}
	o.mounted = true
	o.mounts++
	logger.Debug().Int("mounts", o.mounts).Msg("Overlay mounted")
	o.publishLocked()
}

func (o *Overlay) Unmount() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.mounted {
		return
	}
	o.mounted = false
	o.publishLocked()
}

// Mounted 当前是否已挂载
func (o *Overlay) Mounted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mounted
}

// Mounts 累计挂载次数
func (o *Overlay) Mounts() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mounts
}

func (o *Overlay) SetLines(lines []lyrics.Line) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = lines
	o.plain = nil
	o.current = ""
	o.publishLocked()
}

// SetPlain shows untimed lyrics; the socket gets the first line and the
// status file gets the whole text.
func (o *Overlay) SetPlain(lines []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = nil
	o.plain = lines
	o.current = ""
	if len(lines) > 0 {
		o.current = lines[0]
	}
	o.publishLocked()
}

func (o *Overlay) SetStatus(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = nil
	o.plain = nil
	o.current = msg
	o.publishLocked()
}

func (o *Overlay) Highlight(index int, line lyrics.Line) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index < 0 {
		o.current = ""
	} else {
		o.current = line.Text
	}
	o.publishLocked()
}

func (o *Overlay) Show() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hidden = false
	o.publishLocked()
}

func (o *Overlay) Hide() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hidden = true
	o.publishLocked()
}

func (o *Overlay) visibleLocked() string {
	if !o.mounted || o.hidden {
		return ""
	}
	return o.current
}

func (o *Overlay) publishLocked() {
	line := o.visibleLocked()
	if line == o.last {
		return
	}
	o.last = line
	o.out.Broadcast(line)

	if o.outputFile == "" {
		return
	}
	content := line
	if len(o.plain) > 0 && line != "" {
		content = strings.Join(o.plain, "\n")
	}
	if err := fileutil.WriteFileOverwrite(o.outputFile, []byte(content+"\n"), 0644); err != nil {
		logger.Warn().Err(err).Str("path", o.outputFile).Msg("Failed to write status file")
		return
	}
	if o.refresher != nil {
		if err := o.refresher.Refresh(); err != nil {
			logger.Debug().Err(err).Msg("Status bar refresh failed")
		}
	}
}
