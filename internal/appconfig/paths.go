package appconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrUnsupportedOS is returned when no per-user directory convention is
// known for the running operating system.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// Paths lists every file ollachat reads or writes outside the working directory.
type Paths struct {
	ConfigDir        string
	ConfigFile       string
	ChatsDir         string
	DefaultModelFile string
	HistoryFile      string
	LogFile          string
}

// ResolvePaths returns the paths for the running OS. A non-empty override
// replaces the per-OS configuration directory.
func ResolvePaths(override string) (Paths, error) {
	return resolvePaths(runtime.GOOS, override, os.Getenv)
}

func resolvePaths(goos, override string, getenv func(string) string) (Paths, error) {
	dir := strings.TrimSpace(override)
	if dir == "" {
		var err error
		dir, err = configDir(goos, getenv)
		if err != nil {
			return Paths{}, err
		}
	}
	return Paths{
		ConfigDir:        dir,
		ConfigFile:       filepath.Join(dir, "config.json"),
		ChatsDir:         filepath.Join(dir, "chats"),
		DefaultModelFile: filepath.Join(dir, "default.txt"),
		HistoryFile:      filepath.Join(dir, "history"),
		LogFile:          filepath.Join(dir, AppName+".log"),
	}, nil
}

func configDir(goos string, getenv func(string) string) (string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, AppName), nil
		}
		home := getenv("HOME")
		if home == "" {
			return "", errors.New("$HOME is not set")
		}
		return filepath.Join(home, ".config", AppName), nil
	case "darwin":
		home := getenv("HOME")
		if home == "" {
			return "", errors.New("$HOME is not set")
		}
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" {
			return "", errors.New("%APPDATA% is not set")
		}
		return filepath.Join(appData, AppName), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedOS, goos)
	}
}

// Ensure creates the directories the session writes into.
func (p Paths) Ensure() error {
	return os.MkdirAll(p.ChatsDir, 0o755)
}
