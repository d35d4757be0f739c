package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdoulgee/skylinee/pkg/composer"
	"github.com/abdoulgee/skylinee/pkg/models"
)

var sendImage string

func init() {
	sendCmd.Flags().StringVar(&sendImage, "image", "", "path of an image file to attach")
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(markReadCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send [thread-id] [text]",
	Short: "Send a message to a thread",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tid := args[0]
		if _, err := models.ParseThreadID(tid); err != nil {
			return fmt.Errorf("invalid thread id %q", tid)
		}
		c := composer.New(newClient())
		if len(args) > 1 {
			c.SetText(args[1])
		}
		if sendImage != "" {
			data, err := os.ReadFile(sendImage)
			if err != nil {
				return err
			}
			c.Attach(filepath.Base(sendImage), data)
		}
		msg, err := c.Send(cmd.Context(), tid)
		if err != nil {
			return err
		}
		fmt.Printf("sent message %d\n", msg.ID)
		return nil
	},
}

var markReadCmd = &cobra.Command{
	Use:   "mark-read [thread-id]",
	Short: "Move the acting identity's read watermark to now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tid := args[0]
		if _, err := models.ParseThreadID(tid); err != nil {
			return fmt.Errorf("invalid thread id %q", tid)
		}
		return newClient().MarkRead(cmd.Context(), tid)
	},
}
