package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/paw/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved watch profiles",
	Long:  `Commands for inspecting the watch profiles that "paw run --profile" uses.`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE:  runProfileList,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example profiles file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), config.ExampleConfig)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configExampleCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(viper.GetString("output"))
	if err != nil {
		return err
	}

	path := profilesPath()
	profiles, err := config.LoadConfig(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(profiles)
	case formatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(profiles); err != nil {
			return err
		}
		return encoder.Close()
	}

	names := profiles.Names()
	if len(names) == 0 {
		fmt.Fprintf(out, "No profiles in %s\n", path)
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header("Name", "Command", "Interval", "Timeout")
	for _, name := range names {
		p := profiles.Profiles[name]
		timeout := p.Timeout
		if timeout == "" {
			timeout = "-"
		}
		table.Append(
			name,
			strings.TrimSpace(p.Command+" "+strings.Join(p.Args, " ")),
			p.Interval,
			timeout,
		)
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal profiles: %d\n", len(names))
	return nil
}
