package cmd

import (
	"fmt"
	"io"

	"github.com/libranswer/libranswer/internal/index"
	"github.com/libranswer/libranswer/internal/ui"
)

// consoleProgressSink prints one line per indexed item, implementing
// index.ProgressSink directly for C5's started/succeeded/skipped/errored
// events and reusing ui.Styles for the same coloring chat.go uses.
type consoleProgressSink struct {
	out    io.Writer
	styles ui.Styles
}

func newConsoleProgressSink(out io.Writer) *consoleProgressSink {
	return &consoleProgressSink{out: out, styles: ui.DefaultStyles()}
}

func (s *consoleProgressSink) OnEvent(ev index.Event) {
	switch ev.Kind {
	case index.EventStarted:
		_, _ = fmt.Fprintf(s.out, "%s %s\n", s.styles.Stage.Render("..."), ev.ItemID)
	case index.EventSucceeded:
		_, _ = fmt.Fprintf(s.out, "%s %s (%d chunks)\n", s.styles.Success.Render("ok "), ev.ItemID, ev.Chunks)
	case index.EventSkipped:
		_, _ = fmt.Fprintf(s.out, "%s %s: %s\n", s.styles.Warning.Render("skip"), ev.ItemID, ev.Reason)
	case index.EventErrored:
		_, _ = fmt.Fprintf(s.out, "%s %s: %v\n", s.styles.Error.Render("fail"), ev.ItemID, ev.Err)
	}
}
