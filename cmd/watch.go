package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"autotyper/internal/control"
	"autotyper/internal/engine"
	"autotyper/internal/network"
	"autotyper/internal/protocol"
)

var watchInterval time.Duration

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream run events and status changes until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runWatchCmd,
	}
	cmd.Flags().DurationVar(&watchInterval, "interval", 0, "also ask for a fresh status this often (0 = only on changes)")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, _ []string) error {
	cfgMgr, err := loadConfig()
	if err != nil {
		return err
	}
	u, tok := endpoint(cfgMgr.Get())

	p := &watchPrinter{out: cmd.OutOrStdout()}
	ws := network.NewWSClient(u, tok)
	ws.OnEvent = p.event
	ws.OnStatus = p.status
	ws.Start()
	defer ws.Close()

	var tick <-chan time.Time
	if watchInterval > 0 {
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if ws.IsConnected() {
				ws.RequestStatus()
			}
		}
	}
}

// watchPrinter serializes output from the websocket read goroutine
type watchPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *watchPrinter) event(ev protocol.EventPayload) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := ev.Time.Format("15:04:05")
	switch engine.EventType(ev.Type) {
	case engine.EventWordTyped:
		mark := ""
		if ev.Degraded {
			mark = " (with errors)"
		}
		fmt.Fprintf(p.out, "%s %s %q%s\n", ts, ev.Type, ev.Word, mark)
	case engine.EventRunFinished:
		fmt.Fprintf(p.out, "%s %s %s (%s)\n", ts, ev.Type, ev.RunID, ev.Reason)
	case engine.EventLineBreak:
		fmt.Fprintf(p.out, "%s %s\n", ts, ev.Type)
	default:
		fmt.Fprintf(p.out, "%s %s %s\n", ts, ev.Type, ev.RunID)
	}
}

func (p *watchPrinter) status(st control.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "status: %s, queued %d, typed %d, speed %s\n", st.State, st.QueueLen, st.TypedCount, st.Speed)
}
