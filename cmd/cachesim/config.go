package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print a hierarchy configuration.",
	Long: "`config` prints the configuration selected by --preset, or by " +
		"--config, as JSON. Use --output to write it to a file instead.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := runOptions{}
		opts.preset, _ = cmd.Flags().GetString("preset")
		opts.configPath, _ = cmd.Flags().GetString("config")

		config, err := loadHierarchyConfig(opts)
		if err != nil {
			return err
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		output, _ := cmd.Flags().GetString("output")
		if output != "" {
			return config.SaveConfig(output)
		}

		data, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().String("preset", "default",
		"Hierarchy preset: default, direct-l2, single")
	configCmd.Flags().String("config", "",
		"Validate and print this configuration file instead of a preset")
	configCmd.Flags().StringP("output", "o", "", "Write the configuration to a file")
}
