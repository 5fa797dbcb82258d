// Package main provides the omni CLI entry point.
package main

import (
	"fmt"
	"os"
	"strings"

	"omnichat/internal/config"
	"omnichat/internal/gemini"
	"omnichat/internal/logging"
	"omnichat/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dataDir    string
	modelName  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "omni",
	Short: "omni - multimodal Gemini assistant for the terminal",
	Long: `omni is a terminal assistant built on the Gemini API.

It keeps persistent chat sessions in SQLite, compacts long histories by
summarizing older turns, stages images and documents for multimodal
prompts, searches the web through a SearXNG instance, runs a multi-angle
research agent, summarizes YouTube videos, and holds hands-free voice
conversations with optional camera or screen context.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "omni" && cmd.CalledAs() == "omni" {
			return nil
		}

		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch interactive chat
		return runInteractiveChat()
	},
}

// versionCmd prints the build version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the omni version",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.omni/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.omni, or OMNI_DATA_DIR)")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Gemini model to use for this invocation")

	// Add commands to root
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(youtubeCmd)
	rootCmd.AddCommand(liveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: file, environment
// overrides, then command-line flags on top.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if modelName != "" {
		cfg.Gemini.Model = modelName
	}
	return cfg, nil
}

// newClient builds a Gemini client from the configured credentials.
// Validation happens here, not in loadConfig, so commands that never
// talk to the model still work without an API key.
func newClient(cfg *config.Config) (*gemini.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gc := gemini.DefaultConfig(cfg.Gemini.APIKey)
	gc.Model = cfg.Gemini.Model
	gc.BaseURL = cfg.Gemini.BaseURL
	gc.Timeout = cfg.GetGeminiTimeout()
	gc.MaxOutputTokens = cfg.Gemini.MaxOutputTokens
	gc.Temperature = cfg.Gemini.Temperature
	return gemini.New(gc), nil
}

// openStore initializes category logging and opens the session
// database under the data directory.
func openStore(cfg *config.Config) (*store.Store, error) {
	if err := logging.Initialize(cfg.DataDir()); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return st, nil
}

// joinArgs combines command arguments into a single string
func joinArgs(args []string) string {
	return strings.Join(args, " ")
}

// stdoutIsTTY reports whether stdout is a character device, which
// decides between rendered and plain markdown output.
func stdoutIsTTY() bool {
	stat, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
