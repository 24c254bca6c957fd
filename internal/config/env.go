package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"vfi-client/internal/domain"
)

// Environment variables that override stored settings.
const (
	EnvServerHost    = "VFI_SERVER_HOST"
	EnvSecure        = "VFI_SECURE"
	EnvUserName      = "VFI_USER_NAME"
	EnvOutputDir     = "VFI_OUTPUT_DIR"
	EnvChunkSize     = "VFI_CHUNK_SIZE"
	EnvProgressSteps = "VFI_PROGRESS_STEPS"
	EnvIdleTimeout   = "VFI_IDLE_TIMEOUT_SECONDS"
	EnvSaveFrames    = "VFI_SAVE_FRAMES"
	EnvLogLevel      = "VFI_LOG_LEVEL"
)

// LoadDotEnv reads .env files from the working directory when present.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	for _, file := range files {
		// Missing files are fine.
		_ = godotenv.Load(file)
	}
}

// ApplyEnv layers VFI_* variables over settings. Unset variables leave the
// stored value alone; unparsable numbers and booleans are errors.
func ApplyEnv(settings domain.Settings) (domain.Settings, error) {
	return applyEnv(settings, os.LookupEnv)
}

func applyEnv(settings domain.Settings, lookup func(string) (string, bool)) (domain.Settings, error) {
	if v, ok := lookup(EnvServerHost); ok {
		settings.ServerHost = v
	}
	if v, ok := lookup(EnvUserName); ok {
		settings.UserName = v
	}
	if v, ok := lookup(EnvOutputDir); ok {
		settings.OutputDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		settings.LogLevel = v
	}

	var err error
	if settings.Secure, err = envBool(lookup, EnvSecure, settings.Secure); err != nil {
		return settings, err
	}
	if settings.SaveFrames, err = envBool(lookup, EnvSaveFrames, settings.SaveFrames); err != nil {
		return settings, err
	}
	if settings.ChunkSize, err = envInt(lookup, EnvChunkSize, settings.ChunkSize); err != nil {
		return settings, err
	}
	if settings.ProgressSteps, err = envInt(lookup, EnvProgressSteps, settings.ProgressSteps); err != nil {
		return settings, err
	}
	if settings.IdleTimeoutSeconds, err = envInt(lookup, EnvIdleTimeout, settings.IdleTimeoutSeconds); err != nil {
		return settings, err
	}
	return settings, nil
}

func envBool(lookup func(string) (string, bool), key string, current bool) (bool, error) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return current, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return current, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func envInt(lookup func(string) (string, bool), key string, current int) (int, error) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return current, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return current, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Normalize trims user inputs and fills defaults for empty or out-of-range values.
func Normalize(settings domain.Settings) domain.Settings {
	settings.ServerHost = strings.TrimSpace(settings.ServerHost)
	settings.ServerHost = strings.TrimSuffix(settings.ServerHost, "/")
	for _, scheme := range []string{"ws://", "wss://", "http://", "https://"} {
		settings.ServerHost = strings.TrimPrefix(settings.ServerHost, scheme)
	}
	settings.UserName = strings.TrimSpace(settings.UserName)
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))

	if settings.UserName == "" {
		settings.UserName = DefaultUserName
	}
	if settings.ChunkSize <= 0 {
		settings.ChunkSize = DefaultChunkSize
	}
	if settings.ProgressSteps <= 0 {
		settings.ProgressSteps = DefaultProgressSteps
	}
	if settings.IdleTimeoutSeconds < 0 {
		settings.IdleTimeoutSeconds = 0
	}
	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}
	return settings
}
