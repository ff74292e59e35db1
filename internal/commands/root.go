// internal/commands/root.go
package ollachat

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/ollachat/internal/appconfig"
	"github.com/mwiater/ollachat/internal/logging"
)

var (
	cfgFile       string
	startModel    string
	currentConfig *appconfig.Config
	currentPaths  appconfig.Paths
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"

	// stdin is swapped by tests.
	stdin = os.Stdin
)

// rootCmd starts an interactive chat session when called without subcommands.
var rootCmd = &cobra.Command{
	Use:          "ollachat",
	Short:        "ollachat: chat with local Ollama models in the terminal",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runChat,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	err := rootCmd.Execute()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle: loadConfig -> bindFlags -> rootCmd.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	}
	rootCmd.Flags().StringVarP(&startModel, "model", "m", "", "model to start the chat with")
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default <configDir>/config.json)")
	rootCmd.PersistentFlags().String("host", appconfig.DefaultHost, "Ollama server URL")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("logFile", "", "path to the log file")
	bindFlags()
}

func bindFlags() {
	for _, name := range []string{"host", "debug", "logFile"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// loadConfig merges flags, environment, the config file and defaults into
// currentConfig, creates the per-user directories and opens the log file.
func loadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	bindFlags()
	for key, value := range appconfig.Defaults() {
		viper.SetDefault(key, value)
	}
	viper.SetEnvPrefix("OLLACHAT")
	viper.AutomaticEnv()
	_ = viper.BindEnv("host", "OLLACHAT_HOST", "OLLAMA_HOST")
	_ = viper.BindEnv("dataDir", "OLLACHAT_DATADIR")

	paths, err := appconfig.ResolvePaths(viper.GetString("dataDir"))
	if err != nil {
		return err
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = paths.ConfigFile
	}
	viper.SetConfigFile(configPath)
	if err := ensureConfigLoaded(); err != nil {
		return err
	}

	// A data directory set in the config file moves everything else.
	if dir := viper.GetString("dataDir"); dir != "" && dir != paths.ConfigDir {
		if paths, err = appconfig.ResolvePaths(dir); err != nil {
			return err
		}
	}
	if err := paths.Ensure(); err != nil {
		return fmt.Errorf("create %s: %w", paths.ConfigDir, err)
	}

	var cfg appconfig.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigPath = configPath
	cfg.Normalize()
	currentConfig = &cfg
	currentPaths = paths

	if err := logging.Init(cfg.LogFilePath(paths)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.LogEvent("config loaded: host=%s config=%s data=%s", cfg.Host, configPath, paths.ConfigDir)
	return nil
}

// ensureConfigLoaded reads the config file; a missing file is not an error.
func ensureConfigLoaded() error {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// GetConfig returns the loaded application configuration.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
