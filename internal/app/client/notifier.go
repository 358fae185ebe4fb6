package client

import (
	"fmt"
	"io"
	gosync "sync"

	"github.com/fatih/color"

	"vetsync/internal/app/client/facade"
)

// ConsoleNotifier печатает уведомления фасадов в терминал.
type ConsoleNotifier struct {
	out io.Writer
	mu  gosync.Mutex
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (n *ConsoleNotifier) Notify(msg facade.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var paint func(format string, a ...interface{}) string
	mark := "✓"
	switch msg.Level {
	case facade.LevelWarning:
		paint = color.YellowString
		mark = "⚠️ "
	case facade.LevelError:
		paint = color.RedString
		mark = "✗"
	default:
		paint = color.GreenString
	}

	fmt.Fprintf(n.out, "%s %s: %s\n", paint(mark), color.New(color.Bold).Sprint(msg.Title), msg.Message)
}
