// Package appconfig describes ollachat's configuration and where it keeps
// per-user state on disk.
package appconfig

import (
	"strings"
	"time"
)

const (
	// AppName names the per-user configuration directory.
	AppName = "ollachat"
	// DefaultHost is the address of a locally running Ollama server.
	DefaultHost = "http://localhost:11434"
	// defaultRequestTimeout bounds connecting and waiting for a response to
	// start. A streamed reply may run longer.
	defaultRequestTimeout = 600 * time.Second
	// DefaultSpeechEndpoint is the inference route of a local whisper.cpp server.
	DefaultSpeechEndpoint = "http://localhost:8080/inference"
	// DefaultRecordCommand captures one mono 16 kHz clip with ALSA.
	DefaultRecordCommand = "arecord -q -f S16_LE -r 16000 -c 1 -d {seconds} {file}"
	// DefaultStopPhrase ends voice input without producing a chat turn.
	DefaultStopPhrase = "stop voice"
	defaultClipSeconds = 6
	defaultLanguage    = "en"
)

// Config represents the merged application configuration.
type Config struct {
	Host           string `json:"host" mapstructure:"host"`
	TimeoutSeconds int    `json:"timeout,omitempty" mapstructure:"timeout"`
	Debug          bool   `json:"debug" mapstructure:"debug"`
	LogFile        string `json:"logFile,omitempty" mapstructure:"logFile"`
	DataDir        string `json:"dataDir,omitempty" mapstructure:"dataDir"`
	Speech         Speech `json:"speech" mapstructure:"speech"`
	ConfigPath     string `json:"-" mapstructure:"-"`
}

// Speech configures the voice input collaborator.
type Speech struct {
	Endpoint      string `json:"endpoint" mapstructure:"endpoint"`
	RecordCommand string `json:"recordCommand" mapstructure:"recordCommand"`
	ClipSeconds   int    `json:"clipSeconds" mapstructure:"clipSeconds"`
	StopPhrase    string `json:"stopPhrase" mapstructure:"stopPhrase"`
	Language      string `json:"language" mapstructure:"language"`
}

// Defaults returns the value of every configuration key when neither a flag,
// the environment nor a config file sets it.
func Defaults() map[string]any {
	return map[string]any{
		"host":                 DefaultHost,
		"timeout":              int(defaultRequestTimeout.Seconds()),
		"debug":                false,
		"logFile":              "",
		"dataDir":              "",
		"speech.endpoint":      DefaultSpeechEndpoint,
		"speech.recordCommand": DefaultRecordCommand,
		"speech.clipSeconds":   defaultClipSeconds,
		"speech.stopPhrase":    DefaultStopPhrase,
		"speech.language":      defaultLanguage,
	}
}

// Normalize fills zero values left behind by a partial config file.
func (c *Config) Normalize() {
	c.Host = strings.TrimRight(strings.TrimSpace(c.Host), "/")
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if !strings.Contains(c.Host, "://") {
		c.Host = "http://" + c.Host
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}
	if strings.TrimSpace(c.Speech.Endpoint) == "" {
		c.Speech.Endpoint = DefaultSpeechEndpoint
	}
	if strings.TrimSpace(c.Speech.RecordCommand) == "" {
		c.Speech.RecordCommand = DefaultRecordCommand
	}
	if c.Speech.ClipSeconds <= 0 {
		c.Speech.ClipSeconds = defaultClipSeconds
	}
	if strings.TrimSpace(c.Speech.StopPhrase) == "" {
		c.Speech.StopPhrase = DefaultStopPhrase
	}
	if strings.TrimSpace(c.Speech.Language) == "" {
		c.Speech.Language = defaultLanguage
	}
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, defaulting to
// a file inside the per-user directory.
func (c Config) LogFilePath(paths Paths) string {
	if path := strings.TrimSpace(c.LogFile); path != "" {
		return path
	}
	return paths.LogFile
}
