package cmd

import (
	"fmt"
	"slices"

	"github.com/marcus/shelf/internal/config"
	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/internal/suggest"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Manage shelf configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value (empty value resets to the default)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if err := config.Set(getBaseDir(), key, val); err != nil {
			return withKeyHint(key, err)
		}
		if jsonOutput(cmd) {
			return output.JSON(map[string]string{"key": key, "value": val})
		}
		output.Success("%s = %s", key, val)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.Get(getBaseDir(), args[0])
		if err != nil {
			return withKeyHint(args[0], err)
		}
		if jsonOutput(cmd) {
			return output.JSON(map[string]string{"key": args[0], "value": val})
		}
		fmt.Println(val)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List config keys with their stored and effective values",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		baseDir := getBaseDir()

		effective := map[string]string{
			"server_url":      config.GetServerURL(baseDir),
			"request_timeout": config.GetRequestTimeout(baseDir).String(),
			"probe_timeout":   config.GetProbeTimeout(baseDir).String(),
			"offline":         fmt.Sprint(config.GetOffline(baseDir)),
		}

		type entry struct {
			Key       string `json:"key"`
			Value     string `json:"value"`
			Effective string `json:"effective"`
			Describe  string `json:"description"`
		}
		entries := make([]entry, 0, len(config.Keys()))
		for _, key := range config.Keys() {
			val, err := config.Get(baseDir, key)
			if err != nil {
				return err
			}
			entries = append(entries, entry{Key: key, Value: val, Effective: effective[key], Describe: config.Describe(key)})
		}

		if jsonOutput(cmd) {
			return output.JSON(entries)
		}
		for _, e := range entries {
			fmt.Printf("%-16s %-28s # %s\n", e.Key, e.Effective, e.Describe)
		}
		return nil
	},
}

// withKeyHint suggests a valid key when key is not one.
func withKeyHint(key string, err error) error {
	if slices.Contains(config.Keys(), key) {
		return err
	}
	if near := suggest.Closest(key, config.Keys()); len(near) > 0 {
		return fmt.Errorf("%w (did you mean %s?)", err, near[0])
	}
	return err
}

func init() {
	configCmd.AddCommand(configSetCmd, configGetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
