package watch

import (
	"strings"
	"time"
)

// Ticker is the heartbeat glyph in the header; it flips every poll so a
// frozen UI is visible at a glance.
type Ticker struct {
	frames   []string
	index    int
	lastTick time.Time
}

func NewTicker() Ticker {
	return Ticker{
		frames:   []string{"⟲", "⟳"},
		lastTick: time.Now(),
	}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
	t.lastTick = time.Now()
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

// Spinner is the dispatch activity meter. Every event lights all dots; they
// fade out one per two seconds of silence.
type Spinner struct {
	dots      int
	lastEvent time.Time
}

const spinnerDots = 5

func NewSpinner() Spinner {
	return Spinner{}
}

func (s *Spinner) OnEvent() {
	s.dots = spinnerDots
	s.lastEvent = time.Now()
}

func (s *Spinner) Decay() {
	if s.dots == 0 {
		return
	}
	quiet := int(time.Since(s.lastEvent) / (2 * time.Second))
	if remaining := spinnerDots - quiet; remaining < s.dots {
		s.dots = max(remaining, 0)
	}
}

func (s Spinner) Render(theme Theme) string {
	var out strings.Builder
	for i := 0; i < spinnerDots; i++ {
		if i < s.dots {
			out.WriteString(theme.TickerActive.Render("●"))
		} else {
			out.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return out.String()
}

func (s Spinner) LastEvent() time.Time {
	return s.lastEvent
}
