// Package config loads configuration with the priority CLI flags > environment
// variables > defaults. A .env file in the working directory is folded into
// the environment first.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Default configuration values.
const (
	DefaultServer = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Server holds the server-side settings. The listen port and the allowed
// origin are the only externally configured parameters; nothing persists to
// disk.
type Server struct {
	Port          string
	AllowedOrigin string
}

// LoadServer reads server configuration from the environment.
func LoadServer() *Server {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	origin := os.Getenv("CLIENT_URL")
	if origin == "" {
		origin = "*"
	}
	return &Server{Port: port, AllowedOrigin: origin}
}

// Client holds the client-side settings: where the server lives and which
// ICE servers to hand to the peer connections.
type Client struct {
	// Server is host[:port], without scheme. Secure picks wss/https.
	Server string
	Secure bool

	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Options carries CLI flag overrides into Load.
type Options struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load builds the client configuration: flags beat env, env beats defaults.
func Load(opts Options) (*Client, error) {
	_ = godotenv.Load()

	server := opts.Server
	if server == "" {
		server = os.Getenv("WATCHTOGETHER_SERVER")
	}
	if server == "" {
		server = DefaultServer
	}
	server, secure := normalizeServer(server)

	stun := opts.STUNServer
	if stun == "" {
		stun = os.Getenv("STUN_SERVER")
	}
	if stun == "" {
		stun = DefaultSTUN
	}

	turn := opts.TURNServer
	if turn == "" {
		turn = os.Getenv("TURN_SERVER")
	}
	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}
	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}

	cfg := &Client{
		Server:     server,
		Secure:     secure,
		STUNServer: stun,
		TURNServer: turn,
		TURNUser:   turnUser,
		TURNPass:   turnPass,
		ForceRelay: opts.ForceRelay,
	}
	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without a TURN server configured")
	}
	return cfg, nil
}

// normalizeServer strips an explicit scheme and decides whether to use TLS.
// Bare localhost targets stay plaintext for local development.
func normalizeServer(server string) (string, bool) {
	switch {
	case strings.HasPrefix(server, "https://"):
		return strings.TrimPrefix(server, "https://"), true
	case strings.HasPrefix(server, "http://"):
		return strings.TrimPrefix(server, "http://"), false
	}
	host := server
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	local := host == "localhost" || host == "127.0.0.1"
	return server, !local
}

// WebSocketURL returns the signaling endpoint.
func (c *Client) WebSocketURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, c.Server)
}

// CreateRoomURL returns the room-creation endpoint.
func (c *Client) CreateRoomURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/create-room", scheme, c.Server)
}

// GetSTUNServers returns STUN server URLs.
func (c *Client) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *Client) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns the TURN username and password.
func (c *Client) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
