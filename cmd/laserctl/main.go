package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/mastercactapus/lasersim/client"
	"github.com/mastercactapus/lasersim/protocol"
	"github.com/mastercactapus/lasersim/scan"
	"github.com/spf13/cobra"
)

var (
	addr      string
	timeout   time.Duration
	verbose   bool
	dryRun    bool
	threshold uint8
	step      int
)

var rootCmd = &cobra.Command{
	Use:          "laserctl",
	Short:        "Control a laserd plotter",
	SilenceUsage: true,
}

var sendCmd = &cobra.Command{
	Use:   "send <command...>",
	Short: "Send one command and print the next message received",
	Long: `Send one command and print the next message received.

Replies and broadcasts share one format, so while another client is moving
the machine the printed message may be a broadcast snapshot instead of the
reply to this command.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		line := strings.Join(args, " ")
		_, err := protocol.ParseLine(line)
		if err != nil {
			return err
		}

		return withClient(func(ctx context.Context, c *client.Client) error {
			err := c.SendLine(line)
			if err != nil {
				return err
			}
			select {
			case msg := <-c.Messages():
				return printMessage(cmd.OutOrStdout(), msg)
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the machine status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *client.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			return printMessage(cmd.OutOrStdout(), &st)
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a command script, waiting for every move to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		return runCommands(cmd.OutOrStdout(), protocol.NewParser(fd))
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Burn an image line by line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fd, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer fd.Close()

		cmds, err := scan.Image(fd, scan.Options{Threshold: threshold, Step: step})
		if err != nil {
			return err
		}
		log.Printf("scan: %d commands", len(cmds))

		return runCommands(cmd.OutOrStdout(), &protocol.CommandsReader{Commands: cmds})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "localhost:12345", "Address of the laserd server.")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits forever).")

	statusCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Dump the full status structure.")
	sendCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Dump the full message structure.")

	for _, c := range []*cobra.Command{runCmd, scanCmd} {
		c.Flags().BoolVar(&dryRun, "dry-run", false, "Print the commands instead of sending them.")
	}
	scanCmd.Flags().Uint8Var(&threshold, "threshold", scan.DefaultThreshold, "Pixels darker than this are burned.")
	scanCmd.Flags().IntVar(&step, "step", 1, "Pixel step between scanned rows and columns.")

	rootCmd.AddCommand(sendCmd, statusCmd, runCmd, scanCmd)
}

func main() {
	log.SetFlags(log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func withClient(fn func(context.Context, *client.Client) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := client.NewClient(addr)
	defer c.Close()
	return fn(ctx, c)
}

func runCommands(w io.Writer, r protocol.Reader) error {
	if dryRun {
		_, err := io.Copy(w, protocol.NewBuffer(r))
		return err
	}

	return withClient(func(ctx context.Context, c *client.Client) error {
		return c.Run(ctx, r)
	})
}

func printMessage(w io.Writer, msg interface{}) error {
	if verbose {
		spew.Fdump(w, msg)
		return nil
	}

	if e, ok := msg.(*protocol.ErrorMessage); ok {
		return fmt.Errorf("server: %s", e.Error)
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
