package cli

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdoulgee/skylinee/pkg/models"
	"github.com/abdoulgee/skylinee/pkg/poll"
)

var tailFollow bool

func init() {
	tailCmd.Flags().BoolVarP(&tailFollow, "follow", "f", false, "keep polling and print new messages")
	rootCmd.AddCommand(tailCmd)
}

var tailCmd = &cobra.Command{
	Use:   "tail [thread-id]",
	Short: "Print a thread's messages, optionally following new ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tid := args[0]
		if _, err := models.ParseThreadID(tid); err != nil {
			return fmt.Errorf("invalid thread id %q", tid)
		}
		c := newClient()

		if !tailFollow {
			msgs, err := c.Messages(cmd.Context(), tid)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(m)
			}
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		s := poll.NewSyncer(c, poll.Options{ThreadEvery: 2 * time.Second})
		go s.Run(ctx)
		s.Select(tid)

		seen := int64(0)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, m := range s.Messages() {
					if m.ID > seen {
						printMessage(m)
						seen = m.ID
					}
				}
				if s.Stale() {
					fmt.Fprintln(os.Stderr, "warning: server unreachable, showing last known state")
				}
			}
		}
	},
}

func printMessage(m models.Message) {
	ts := time.Unix(0, m.CreatedAt).Format(time.RFC3339)
	body := m.Text
	if m.ImageURL != "" {
		if body != "" {
			body += " "
		}
		body += "[image " + m.ImageURL + "]"
	}
	fmt.Printf("%s  %-8s  %s\n", ts, m.SenderRole, body)
}
