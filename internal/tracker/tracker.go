// Package tracker maps playback time to the active lyric line.
package tracker

import (
	"sync"

	"lyricsync/internal/event"
	"lyricsync/internal/lyrics"
)

// Change 当前行发生变化，Index 为 -1 表示还没有到第一行
type Change struct {
	Index int
	Line  lyrics.Line
}

type Tracker struct {
	// emitMu 让计算和通知作为一个整体，通知顺序与 current 的变化顺序一致
	emitMu sync.Mutex

	mu      sync.Mutex
	lines   []lyrics.Line
	current int

	changes event.Emitter[Change]
}

func New() *Tracker {
	return &Tracker{current: -1}
}

func (t *Tracker) Changes() *event.Emitter[Change] {
	return &t.changes
}

// SetLines replaces the sequence and resets the active index to -1 without
// emitting.
func (t *Tracker) SetLines(lines []lyrics.Line) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = lines
	t.current = -1
}

func (t *Tracker) Index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// OnTime finds the last line whose time is <= now. Equal times resolve to the
// later line. A Change is emitted only when the index moves. Concurrent
// callers are serialized so the last emitted Change always matches Index.
// Subscribers must not call OnTime.
func (t *Tracker) OnTime(now float64) (int, bool) {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.mu.Lock()
	index := -1
	for i, l := range t.lines {
		if l.Time <= now {
			index = i
		}
	}
	if index == t.current {
		t.mu.Unlock()
		return index, false
	}
	t.current = index

	change := Change{Index: index}
	if index >= 0 {
		change.Line = t.lines[index]
	}
	t.mu.Unlock()

	t.changes.Emit(change)
	return index, true
}
