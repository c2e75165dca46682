package ui

import (
	"fmt"
	"io"
	"os"
)

// TextPrinter is the non-TUI renderer: one line per event plus a \r stats line.
type TextPrinter struct {
	Verbose bool
	Out     io.Writer
}

func (p *TextPrinter) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func (p *TextPrinter) PrintEvent(ev ScanEvent) {
	w := p.out()
	switch ev.Type {
	case EvtReachable:
		if p.Verbose {
			fmt.Fprintf(w, "\n[+] UP: %s:%d [%s]\n", ev.Address, ev.Port, ev.Progress)
		}
	case EvtServer:
		if ev.Server == nil {
			return
		}
		s := ev.Server
		fmt.Fprintf(w, "\n[*] SERVER: %s - %s - %d players - %s\n",
			s.HostPort(), s.PlatformTag, s.OnlinePlayers, oneLine(s.MOTD, 80))
	case EvtState:
		fmt.Fprintf(w, "\n[=] %s\n", ev.State)
	case EvtInfo:
		fmt.Fprintf(w, "%s\n", ev.Msg)
	}
}

func (p *TextPrinter) PrintStats(s ScanStats) {
	progress := "continuous"
	if s.Progress >= 0 {
		progress = fmt.Sprintf("%.0f%%", s.Progress*100)
	}
	fmt.Fprintf(p.out(), "\r%s | %s | Rate: %.0f/s | Tested: %s | Up: %s | Servers: %s | Q: %d/%d",
		s.State, progress, s.Rate, fmtNum(s.Tested), fmtNum(s.Reachable), fmtNum(s.Servers),
		s.DiscoveryQueue, s.AnalysisQueue)
}
