package config

import (
	"os"
	"path/filepath"

	"vfi-client/internal/domain"
)

const (
	// DefaultServerHost is the local development server.
	DefaultServerHost = "localhost:8000"
	// DefaultUserName keys uploads on the server when nothing is configured.
	DefaultUserName = "guest"
	// DefaultChunkSize is the upload chunk length in bytes.
	DefaultChunkSize = 1 << 20
	// DefaultProgressSteps is the server step count for count-based progress.
	DefaultProgressSteps = 5
	// DefaultLogLevel is used when the configured level is empty.
	DefaultLogLevel = "info"
)

// DefaultSettingsPath is where the client keeps its settings file.
func DefaultSettingsPath() string {
	return filepath.Join(homeDir(), ".vfi-client", "settings.json")
}

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		ServerHost:    DefaultServerHost,
		UserName:      DefaultUserName,
		OutputDir:     filepath.Join(homeDir(), "Videos", "vfi-client"),
		ChunkSize:     DefaultChunkSize,
		ProgressSteps: DefaultProgressSteps,
		SaveFrames:    true,
		LogLevel:      DefaultLogLevel,
	}
}

func homeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return dir
}
