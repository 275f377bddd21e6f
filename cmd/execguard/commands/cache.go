package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/execguard/execguard/internal/approval"
	"github.com/execguard/execguard/internal/config"
)

var cacheDir string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the approval cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list <session>",
	Short: "List cached approval decisions for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := approval.Load(args[0], resolveCacheDir())
		if err != nil {
			return err
		}

		entries := cache.Entries()
		if len(entries) == 0 {
			fmt.Println("no cached decisions")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tPATTERN\tDECISION\tEXPIRES")
		for _, e := range entries {
			expires := "never"
			if e.ExpiresAt != nil {
				expires = e.ExpiresAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key.Tool, e.Key.Pattern, e.Decision, expires)
		}
		return w.Flush()
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [session]",
	Short: "Clear cached decisions, or only expired ones with --expired",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := resolveCacheDir()
		expiredOnly, _ := cmd.Flags().GetBool("expired")

		if len(args) == 0 {
			if expiredOnly {
				return fmt.Errorf("--expired requires a session")
			}
			return clearAll(dir)
		}

		if expiredOnly {
			cache, err := approval.Load(args[0], dir)
			if err != nil {
				return err
			}
			n := cache.ClearExpired()
			if err := cache.Save(); err != nil {
				return err
			}
			fmt.Printf("removed %d expired decisions\n", n)
			return nil
		}

		path := filepath.Join(dir, args[0]+".json")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Printf("cleared session %s\n", args[0])
		return nil
	},
}

func clearAll(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
		removed++
	}
	fmt.Printf("cleared %d sessions\n", removed)
	return nil
}

func resolveCacheDir() string {
	if cacheDir != "" {
		return cacheDir
	}
	if cfg, err := config.Load(""); err == nil && cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return filepath.Join(config.GetPaths().State, "approvals")
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Approval cache directory")
	cacheClearCmd.Flags().Bool("expired", false, "Only remove expired decisions")
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
