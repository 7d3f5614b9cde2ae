package commands

import (
	"fmt"
	"strings"

	"testudot/internal/config"
	"testudot/internal/store"

	"github.com/mazen160/go-random"
	"github.com/spf13/cobra"
)

var (
	configMode      string
	configGenAPIKey bool
)

func init() {
	configCmd.Flags().StringVarP(&configMode, "mode", "m", "", "The persistence mode: local, sqlite or remote.")
	configCmd.Flags().BoolVar(&configGenAPIKey, "gen-api-key", false, "Generate a key that protects the HTTP API.")
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [--mode <mode>] [--gen-api-key]",
	Short: fmt.Sprintf("Saves settings to %s.", config.SettingsFile),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configMode == "" && !configGenAPIKey {
			return fmt.Errorf("nothing to change, pass --mode or --gen-api-key")
		}

		var settings config.Settings
		if configMode != "" {
			mode, err := store.ParseMode(strings.ToLower(configMode))
			if err != nil {
				return err
			}
			settings.PersistenceMode = string(mode)
		}
		if configGenAPIKey {
			key, err := random.String(32)
			if err != nil {
				return fmt.Errorf("generate api key: %w", err)
			}
			settings.APIKey = key
		}

		err := config.WriteSettings(config.SettingsFile, settings)
		if err != nil {
			return err
		}

		if settings.PersistenceMode != "" {
			fmt.Printf("configuration saved, the default persistence mode is now %s\n", settings.PersistenceMode)
		}
		if settings.APIKey != "" {
			fmt.Printf("api key: %s\n", settings.APIKey)
		}
		return nil
	},
}
