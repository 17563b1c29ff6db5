package sink

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/notifyhub/order-alerts/internal/domain"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F25D94")).
			Padding(0, 2)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	metaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// TerminalSink renders alerts as a boxed banner and rings the terminal bell.
// It cannot vibrate.
type TerminalSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTerminalSink(w io.Writer) *TerminalSink {
	return &TerminalSink{w: w}
}

func (s *TerminalSink) Show(_ context.Context, a domain.Alert) error {
	meta := fmt.Sprintf("%s · %s", a.Source, a.CreatedAt.Local().Format("15:04:05"))
	if a.OrderCount > 0 {
		meta += fmt.Sprintf(" · %d order(s)", a.OrderCount)
	}
	lines := []string{titleStyle.Render(a.Message), metaStyle.Render(meta)}
	if a.TargetURL != "" {
		lines = append(lines, metaStyle.Render(a.TargetURL))
	}
	box := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.w, box); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}
	return nil
}

func (s *TerminalSink) Vibrate(context.Context, time.Duration) error {
	return domain.ErrUnsupported
}

func (s *TerminalSink) PlayDefaultSound(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, "\a"); err != nil {
		return fmt.Errorf("ring bell: %w", err)
	}
	return nil
}

var _ Sink = (*TerminalSink)(nil)
