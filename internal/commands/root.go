// Package commands wires the watchtogether CLI: room creation, joining, and
// the interactive session loop connecting the signaling client, the peer
// orchestrator and the terminal UI.
package commands

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Ajaxkicker/WatchTogether/internal/config"
	"github.com/Ajaxkicker/WatchTogether/internal/ui"
	"github.com/Ajaxkicker/WatchTogether/internal/version"
)

var (
	flagName     string
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "watchtogether",
	Short:   "Watch together from the terminal: screen-share rooms over WebRTC",
	Long: `WatchTogether runs shared viewing rooms from the command line. The room
host streams a screen share to every participant over direct WebRTC
connections, while the room chat, microphone status and host handoff run
through a lightweight signaling server.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// addConnectionFlags registers the server and ICE flags shared by every
// subcommand that opens a session.
func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagName, "name", "n", "", "Display name in the room")
	cmd.Flags().StringVarP(&flagServer, "server", "d", "", "Signaling server address")
	cmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().BoolVarP(&flagRelay, "relay", "r", false, "Force relay mode")
}

func loadConfig() (*config.Client, error) {
	return config.Load(config.Options{
		Server:     flagServer,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
}

// resolveUsername falls back to the OS login name when --name is not given.
func resolveUsername() string {
	if flagName != "" {
		return flagName
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "guest"
}
