package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Transport configuration
// --------------------------------------------------------------------------

// SocketConf holds socket buffer sizes (in bytes, 0 keeps the OS default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // negative keeps the OS default
}

// ServerTransportConfig configures the server side of a transport
type ServerTransportConfig struct {
	Endpoint string
	SocketConf
	TCPConf
}

// ClientTransportConfig configures the client side of a transport
type ClientTransportConfig struct {
	Endpoint   string
	RetryCount int
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerStoreType string

const (
	StoreTypeFile   ServerStoreType = "fstore"
	StoreTypeBolt   ServerStoreType = "bstore"
	StoreTypeSQLite ServerStoreType = "sqlstore"
)

// ParseStoreType converts a flag value to a ServerStoreType
func ParseStoreType(s string) (ServerStoreType, error) {
	switch ServerStoreType(strings.ToLower(strings.TrimSpace(s))) {
	case StoreTypeFile:
		return StoreTypeFile, nil
	case StoreTypeBolt:
		return StoreTypeBolt, nil
	case StoreTypeSQLite:
		return StoreTypeSQLite, nil
	default:
		return "", fmt.Errorf("invalid store type: %s (expected one of: fstore, bstore, sqlstore)", s)
	}
}

// ServerConfig holds all configuration parameters of the authoritative server.
type ServerConfig struct {
	// Claim store
	StoreType ServerStoreType
	DataDir   string

	// Relationship score table (empty means every score is the default)
	ScoresFile string

	// Transport settings
	Transport ServerTransportConfig

	// Admin HTTP endpoint (metrics and claim inspection), empty disables it
	AdminEndpoint string

	// Write timeout for a single message
	TimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Transport.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.AdminEndpoint != "" {
		addField("Admin Endpoint", c.AdminEndpoint)
	}

	// Storage
	addSection("Storage")
	addField("Store", string(c.StoreType))
	addField("Data Directory", c.DataDir)

	// Relationships
	addSection("Relationships")
	if c.ScoresFile == "" {
		addField("Scores File", "(none)")
	} else {
		addField("Scores File", c.ScoresFile)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	// Username is the identity announced in the hello
	Username      string
	TimeoutSecond int
	Transport     ClientTransportConfig
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Username", c.Username)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.Transport.RetryCount))
	addField("Endpoint", c.Transport.Endpoint)

	return sb.String()
}
