package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-code>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join a room by its six-character code.

Examples:
  watchtogether join 7KPX2M
  watchtogether join 7kpx2m --name bob`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := strings.ToUpper(strings.TrimSpace(args[0]))
		if code == "" {
			return fmt.Errorf("room code is required")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runSession(cfg, code, resolveUsername())
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	addConnectionFlags(joinCmd)
}
