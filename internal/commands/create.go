package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ajaxkicker/WatchTogether/internal/config"
	"github.com/Ajaxkicker/WatchTogether/internal/ui"
)

var createCmd = &cobra.Command{
	Use:     "create",
	Aliases: []string{"c"},
	Short:   "Create a room and join it as host",
	Long: `Create a new room on the signaling server and join it as the host.

Examples:
  watchtogether create
  watchtogether create --name alice
  watchtogether create --server watch.example.com --relay`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return createRoom()
	},
}

func createRoom() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stopSpinner := ui.RunConnectionSpinner("Requesting room code...")
	defer stopSpinner()
	code, err := requestRoomCode(cfg)
	if err != nil {
		return err
	}
	stopSpinner()

	ui.RenderRoomInfo(code)
	fmt.Println()

	return runSession(cfg, code, resolveUsername())
}

// requestRoomCode asks the server to reserve a fresh, unused code.
func requestRoomCode(cfg *config.Client) (string, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Get(cfg.CreateRoomURL())
	if err != nil {
		return "", fmt.Errorf("request room code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("request room code: server returned %s", resp.Status)
	}

	var body struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode room code response: %w", err)
	}
	if body.RoomCode == "" {
		return "", fmt.Errorf("server returned an empty room code")
	}
	return body.RoomCode, nil
}

func init() {
	rootCmd.AddCommand(createCmd)
	addConnectionFlags(createCmd)
}
