package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"autotyper/internal/network"
)

const requestTimeout = 15 * time.Second

var (
	enqueueFile string
	enqueueRun  bool
	typedTail   int
	statusJSON  bool
)

// newRemoteCmds returns the commands that drive a running service over HTTP
func newRemoteCmds() []*cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print raw JSON")

	enqueueCmd := &cobra.Command{
		Use:   "enqueue [words...]",
		Short: "Queue words for typing; line breaks in --file become Enter presses",
		RunE:  runEnqueueCmd,
	}
	enqueueCmd.Flags().StringVarP(&enqueueFile, "file", "f", "", "read text from a file ('-' for stdin)")
	enqueueCmd.Flags().BoolVar(&enqueueRun, "start", false, "start typing after queueing")

	typedCmd := &cobra.Command{
		Use:   "typed",
		Short: "Show typed words",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, c *network.Client, cmd *cobra.Command, _ []string) error {
			words, err := c.Typed(ctx, typedTail)
			if err != nil {
				return err
			}
			for _, w := range words {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return nil
		}),
	}
	typedCmd.Flags().IntVar(&typedTail, "tail", 0, "only the last N entries")

	return []*cobra.Command{
		statusCmd,
		enqueueCmd,
		typedCmd,
		{
			Use:   "start",
			Short: "Start typing the queue",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *network.Client, cmd *cobra.Command, _ []string) error {
				id, err := c.Start(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "started run %s\n", id)
				return nil
			}),
		},
		{
			Use:   "stop",
			Short: "Stop typing and clear the typed log",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *network.Client, cmd *cobra.Command, _ []string) error {
				if err := c.Stop(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "stopped")
				return nil
			}),
		},
		{
			Use:   "speed <name>",
			Short: "Select a speed profile",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *network.Client, _ *cobra.Command, args []string) error {
				return c.SetSpeed(ctx, args[0])
			}),
		},
		{
			Use:   "error-chance <percent>",
			Short: "Set the per-character mistake chance (0..100)",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *network.Client, _ *cobra.Command, args []string) error {
				return c.SetErrorChance(ctx, args[0])
			}),
		},
		{
			Use:   "custom-delay <seconds>",
			Short: "Set the extra delay added to every pause (0..5)",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, c *network.Client, _ *cobra.Command, args []string) error {
				return c.SetCustomDelay(ctx, args[0])
			}),
		},
		{
			Use:       "toggle <continue|errors|memory|parsing>",
			Short:     "Flip a boolean setting",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"continue", "errors", "memory", "parsing"},
			RunE: withClient(func(ctx context.Context, c *network.Client, cmd *cobra.Command, args []string) error {
				on, err := c.Toggle(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], strconv.FormatBool(on))
				return nil
			}),
		},
		{
			Use:   "force-parse",
			Short: "Cancel typing, drop the queue and ask the page script to re-parse",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *network.Client, _ *cobra.Command, _ []string) error {
				return c.ForceParse(ctx)
			}),
		},
		{
			Use:   "clear",
			Short: "Drop queued words",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, c *network.Client, cmd *cobra.Command, _ []string) error {
				n, err := c.ClearQueue(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "dropped %d words\n", n)
				return nil
			}),
		},
	}
}

type clientFunc func(ctx context.Context, c *network.Client, cmd *cobra.Command, args []string) error

// withClient builds an API client from the config and flags
func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfgMgr, err := loadConfig()
		if err != nil {
			return err
		}
		u, tok := endpoint(cfgMgr.Get())

		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		return fn(ctx, network.NewClient(u, tok), cmd, args)
	}
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *network.Client, cmd *cobra.Command, _ []string) error {
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		fmt.Fprintf(out, "State:         %s\n", st.State)
		if st.RunID != "" {
			fmt.Fprintf(out, "Run:           %s\n", st.RunID)
		}
		fmt.Fprintf(out, "Queued:        %d\n", st.QueueLen)
		fmt.Fprintf(out, "Typed:         %d\n", st.TypedCount)
		fmt.Fprintf(out, "Speed:         %s (%g-%g s; profiles: %s)\n", st.Speed, st.MinDelay, st.MaxDelay, strings.Join(st.Profiles, ", "))
		fmt.Fprintf(out, "Extra delay:   %g s\n", st.CustomDelay)
		fmt.Fprintf(out, "Errors:        %t (chance %g%%)\n", st.ErrorsEnabled, st.ErrorChance)
		fmt.Fprintf(out, "Continue mode: %t\n", st.ContinueMode)
		fmt.Fprintf(out, "Memory:        %t\n", st.MemoryEnabled)
		fmt.Fprintf(out, "Parsing:       %t (force pending: %t)\n", st.ParsingEnabled, st.ForceParse)
		return nil
	})(cmd, args)
}

func runEnqueueCmd(cmd *cobra.Command, args []string) error {
	words := append([]string(nil), args...)
	if enqueueFile != "" {
		var r io.Reader
		if enqueueFile == "-" {
			r = cmd.InOrStdin()
		} else {
			f, err := os.Open(enqueueFile)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", enqueueFile, err)
			}
			defer f.Close()
			r = f
		}
		fromFile, err := splitText(r)
		if err != nil {
			return err
		}
		words = append(words, fromFile...)
	}
	if len(words) == 0 {
		return fmt.Errorf("nothing to enqueue: pass words or --file")
	}

	return withClient(func(ctx context.Context, c *network.Client, cmd *cobra.Command, _ []string) error {
		n, err := c.EnqueueWords(ctx, words)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %d words (queue length %d)\n", len(words), n)
		if !enqueueRun {
			return nil
		}
		id, err := c.Start(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "started run %s\n", id)
		return nil
	})(cmd, args)
}

// splitText turns text into queue entries: words separated by whitespace,
// with an empty entry (a line break) between lines
func splitText(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	first := true
	for sc.Scan() {
		if !first {
			words = append(words, "")
		}
		first = false
		words = append(words, strings.Fields(sc.Text())...)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read text: %w", err)
	}
	return words, nil
}
