package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/execguard/execguard/internal/config"
	"github.com/execguard/execguard/internal/permission"
)

var (
	evalDir    string
	evalFormat string
)

var evalCmd = &cobra.Command{
	Use:   "eval <permission> <path>",
	Short: "Evaluate a permission request against the configured rules",
	Long: `Evaluate a (permission, path) pair against the configured rule set
without executing anything. The exit status is 0 for allow, 1 for deny
and 2 for ask.

Examples:
  execguard eval file:write src/main.go
  execguard eval tool:bash "rm -rf build"`,
	Args: cobra.ExactArgs(2),
	RunE: evalExecute,
}

func init() {
	evalCmd.Flags().StringVar(&evalDir, "directory", "", "Working directory")
	evalCmd.Flags().StringVar(&evalFormat, "format", "text", "Output format (text|json)")
}

func evalExecute(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(evalDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	evaluator, err := cfg.Evaluator()
	if err != nil {
		return err
	}

	result := evaluator.Evaluate(args[0], args[1])

	if evalFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		fmt.Printf("%s\n", result.Action)
		if result.MatchedRule != "" {
			fmt.Printf("matched: %s\n", result.MatchedRule)
		}
	}

	switch result.Action {
	case permission.ActionDeny:
		os.Exit(1)
	case permission.ActionAsk:
		os.Exit(2)
	}
	return nil
}
