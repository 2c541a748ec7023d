package core

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// LogEnvVar names the environment variable that controls the global log level.
const LogEnvVar = "DEBUG_SSG"

// init sets the global logging level from DEBUG_SSG.
func init() {
	zerolog.SetGlobalLevel(LogLevel(os.Getenv(LogEnvVar)))
}

// LogLevel maps a DEBUG_SSG value to a zerolog level.
// "off" and "0" disable logging, "full" enables debug output, anything else means info.
func LogLevel(mode string) zerolog.Level {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "off", "0":
		return zerolog.Disabled
	case "full":
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
