package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/paw/pkg/logging"
)

var (
	cfgFile      string
	outputFormat string
	logLevel     string
	logJSON      bool
	logFile      string
	profilesFile string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "paw",
	Short: "Run a command and watch its resource usage",
	Long: `paw runs a command as a child process, samples its memory and CPU usage
at a fixed interval until it exits, and reports what it saw together with
the command's exit status and captured output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExitError carries the exit status paw should terminate with. It wraps
// nothing: the child's own failure has already been reported.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.paw/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error, off")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles", "", "profiles file (default is $HOME/.paw/profiles.yaml)")

	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("profiles", rootCmd.PersistentFlags().Lookup("profiles"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".paw"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("paw")
	viper.AutomaticEnv() // PAW_LOG_LEVEL, PAW_INTERVAL, ...

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: failed to read config: %v\n", err)
		}
	}
}

// newLogger builds the logger described by the log_* settings
func newLogger() (*logging.Logger, error) {
	level := logging.ParseLevel(viper.GetString("log_level"))
	jsonFormat := viper.GetBool("log_json")

	if path := viper.GetString("log_file"); path != "" {
		logger, err := logging.NewFileLogger(path, level, jsonFormat)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return logger, nil
	}
	return logging.NewLogger(level, jsonFormat), nil
}

// profilesPath returns the configured profiles file, or $HOME/.paw/profiles.yaml
func profilesPath() string {
	if path := viper.GetString("profiles"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "profiles.yaml"
	}
	return filepath.Join(home, ".paw", "profiles.yaml")
}
