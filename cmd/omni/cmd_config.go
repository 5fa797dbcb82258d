package main

import (
	"fmt"
	"os"

	"omnichat/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd manages the config file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the omni configuration file",
	Long: `Inspect and initialize the configuration file.

Subcommands:
  init - Write a default config file
  show - Print the effective configuration (API key redacted)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s, leaving it alone.\n", path)
		return nil
	}

	cfg := config.DefaultConfig()
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Printf("Wrote default config to %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Set GEMINI_API_KEY in your environment, or add it to the config file")
	fmt.Println("  2. Optionally point search.base_url at your SearXNG instance")
	fmt.Println("  3. Run 'omni' to start chatting")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	fmt.Printf("# config file: %s\n", cfg.ConfigPath())
	if cfg.Gemini.APIKey == "" {
		fmt.Println("# warning: no API key configured (set GEMINI_API_KEY)")
	}
	fmt.Print(string(data))
	return nil
}
