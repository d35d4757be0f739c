package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(threadsCmd)
}

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List the thread directory for the acting identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := newClient()
		threads, err := c.Directory(cmd.Context())
		if err != nil {
			return err
		}
		if len(threads) == 0 {
			fmt.Println("no threads")
			return nil
		}
		for _, t := range threads {
			last := "(no messages)"
			when := humanize.Time(time.Unix(0, t.CreatedAt))
			if t.LastMessage != nil {
				last = t.LastMessage.Text
				if last == "" && t.LastMessage.ImageURL != "" {
					last = "[image]"
				}
				when = humanize.Time(time.Unix(0, t.LastMessage.CreatedAt))
			}
			unread := ""
			if t.Unread > 0 {
				unread = fmt.Sprintf(" [%d unread]", t.Unread)
			}
			who := t.Counterpart.Name
			if t.CustomerName != "" {
				who = fmt.Sprintf("%s / %s", t.CustomerName, who)
			}
			fmt.Printf("%-20s %-30s %-12s%s  %s\n", t.ThreadID, who, when, unread, last)
		}
		return nil
	},
}
