// Package report renders simulation snapshots for people.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/talgya/surnamesim/internal/engine"
)

var (
	colorHeading = lipgloss.Color("#2CD7C7")
	colorLabel   = lipgloss.Color("#20B9B4")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorGain    = lipgloss.Color("#2CD7C7")
	colorLoss    = lipgloss.Color("#E74C3C")
)

// styles holds the console styles. The zero value renders plain text.
type styles struct {
	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	gain    lipgloss.Style
	loss    lipgloss.Style
	box     lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{heading: plain, label: plain, muted: plain, gain: plain, loss: plain, box: plain}
	}
	return styles{
		heading: lipgloss.NewStyle().Bold(true).Foreground(colorHeading),
		label:   lipgloss.NewStyle().Foreground(colorLabel),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
		gain:    lipgloss.NewStyle().Foreground(colorGain),
		loss:    lipgloss.NewStyle().Foreground(colorLoss),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1),
	}
}

// Console writes a block per snapshot. It measures wall-clock time between
// reports itself; the simulation never sees timing.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	styles styles
	now    func() time.Time

	lastAt   time.Time
	lastYear int
}

// NewConsole creates a console reporter writing to w, styled when color is set.
func NewConsole(w io.Writer, color bool) *Console {
	return &Console{
		w:      w,
		styles: newStyles(color),
		now:    time.Now,
	}
}

// Report implements engine.Reporter.
func (c *Console) Report(_ context.Context, snap engine.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var perYear time.Duration
	if !c.lastAt.IsZero() && snap.Year > c.lastYear {
		perYear = now.Sub(c.lastAt) / time.Duration(snap.Year-c.lastYear)
	}
	c.lastAt = now
	c.lastYear = snap.Year

	_, err := io.WriteString(c.w, c.render(snap, perYear)+"\n")
	return err
}

func (c *Console) render(snap engine.Snapshot, perYear time.Duration) string {
	s := c.styles

	title := fmt.Sprintf("Year %s", humanize.Comma(int64(snap.Year)))
	switch {
	case snap.Extinct:
		title += " (extinct)"
	case snap.Final:
		title += " (final)"
	}

	rows := [][2]string{
		{"Population", humanize.Comma(int64(snap.Population))},
		{"Mean age", fmt.Sprintf("%.1f", snap.MeanAge)},
		{"Surnames", fmt.Sprintf("%s (largest %s)", humanize.Comma(int64(snap.Lineages)), humanize.Comma(int64(snap.LargestLineage)))},
		{"Partnered", fmt.Sprintf("%.1f%%", snap.PartneredFraction*100)},
		{"New people", fmt.Sprintf("%s %s", humanize.Comma(int64(snap.NewPeople)), s.muted.Render("+"+humanize.Comma(int64(snap.NewPeopleDelta))))},
		{"Deaths", fmt.Sprintf("%s %s", humanize.Comma(int64(snap.Deaths)), s.muted.Render("+"+humanize.Comma(int64(snap.DeathsDelta))))},
		{"Net / year", c.signed(snap.NetPerYear)},
	}
	if snap.DeathsDelta > 0 {
		rows = append(rows, [2]string{"Death age", fmt.Sprintf("mean %.1f, max %d", snap.MeanDeathAge, snap.MaxDeathAge)})
	}
	if perYear > 0 {
		rows = append(rows, [2]string{"Time / year", s.muted.Render(fmt.Sprintf("%.2f ms", float64(perYear.Microseconds())/1000))})
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	var b strings.Builder
	b.WriteString(s.heading.Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(s.label.Render(fmt.Sprintf("%-*s", width, r[0])))
		b.WriteString("  ")
		b.WriteString(r[1])
	}
	return s.box.Render(b.String())
}

func (c *Console) signed(v float64) string {
	text := fmt.Sprintf("%+.2f", v)
	switch {
	case v > 0:
		return c.styles.gain.Render(text)
	case v < 0:
		return c.styles.loss.Render(text)
	}
	return text
}
