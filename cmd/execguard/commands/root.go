// Package commands provides the CLI commands for execguard.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/execguard/execguard/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel string
	logFile  bool
)

var rootCmd = &cobra.Command{
	Use:   "execguard",
	Short: "execguard - permissioned tool execution for coding agents",
	Long: `execguard runs agent tool calls through a permission evaluator,
an approval cache and an optional sandbox, with interactive approval
for anything the policy does not decide on its own.

Run 'execguard run bash '{"command":"ls"}'' to execute a single call, or
'execguard eval' to test permission rules without executing anything.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Best effort; a missing .env is not an error.
		godotenv.Load()

		logging.Init(logging.Config{
			Level:     logging.ParseLevel(logLevel),
			Pretty:    true,
			LogToFile: logFile,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logFile, "log-file", false, "Also write logs to a file under /tmp")

	rootCmd.SetVersionTemplate(fmt.Sprintf("execguard %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(cacheCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
