package relay

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// Version is reported to MCP clients.
	Version string
}
