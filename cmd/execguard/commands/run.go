package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/execguard/execguard/internal/approval"
	"github.com/execguard/execguard/internal/approver"
	"github.com/execguard/execguard/internal/config"
	"github.com/execguard/execguard/internal/logging"
	"github.com/execguard/execguard/internal/orchestrator"
	"github.com/execguard/execguard/internal/runtime"
	"github.com/execguard/execguard/internal/sandbox"
	"github.com/execguard/execguard/internal/tool"
)

var (
	runDir          string
	runSession      string
	runFormat       string
	runBatch        string
	runApprover     string
	runFullAuto     bool
	runSkipApproval bool
	runSkipSandbox  bool
)

var runCmd = &cobra.Command{
	Use:   "run <tool> [json-input]",
	Short: "Execute a tool call through the approval pipeline",
	Long: `Execute a single tool call, or a batch with --batch, through the
permission evaluator, approval cache and sandbox.

Examples:
  execguard run bash '{"command":"ls -la"}'
  execguard run read '{"path":"main.go"}'
  execguard run --batch calls.json
  execguard run --full-auto bash '{"command":"make test"}'`,
	RunE: runExecute,
}

func init() {
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session ID (shares the approval cache)")
	runCmd.Flags().StringVar(&runFormat, "format", "text", "Output format (text|json)")
	runCmd.Flags().StringVar(&runBatch, "batch", "", "JSON file with a batch of calls [{id,name,input}]")
	runCmd.Flags().StringVar(&runApprover, "approver", "prompt", "How approval requests are answered (prompt|auto|deny|policy)")
	runCmd.Flags().BoolVar(&runFullAuto, "full-auto", false, "Never prompt; approval-gated tools run unattended")
	runCmd.Flags().BoolVar(&runSkipApproval, "skip-approval", false, "Suppress the interactive prompt for this call")
	runCmd.Flags().BoolVar(&runSkipSandbox, "skip-sandbox", false, "Execute directly without a sandbox")
}

func runExecute(cmd *cobra.Command, args []string) error {
	if runBatch == "" && len(args) < 1 {
		return fmt.Errorf("a tool name or --batch is required")
	}

	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if runFullAuto {
		cfg.FullAuto = true
	}
	logging.Init(logging.Config{Level: logging.ParseLevel(cfg.LogLevel), Pretty: true, LogToFile: logFile})

	sessionID := runSession
	if sessionID == "" {
		sessionID = ulid.Make().String()
	}

	cache, err := approval.Load(sessionID, cfg.CacheDir)
	if err != nil {
		return err
	}

	watcher, err := config.NewRuleWatcher(cfg)
	if err != nil {
		return err
	}
	defer watcher.Close()

	registry := buildRegistry(cfg)
	broker := approval.NewBroker()
	orch := orchestrator.New(registry, broker,
		orchestrator.WithCache(cache),
		orchestrator.WithEvaluatorSource(watcher.Evaluator),
	)
	rt := runtime.New(registry, orch)

	if !cfg.FullAuto {
		switch runApprover {
		case "auto":
			stop := approver.Serve(broker, approver.AutoApprove(true))
			defer stop()
		case "deny":
			stop := approver.Serve(broker, approver.DenyAll("unattended run"))
			defer stop()
		case "policy":
			stop := approver.Serve(broker, approver.FromEvaluator(watcher.Evaluator))
			defer stop()
		default:
			go promptApprover(broker)
		}
	}

	toolCtx := &tool.Context{
		WorkDir:       cfg.WorkDir,
		SessionID:     sessionID,
		FullAuto:      cfg.FullAuto,
		SandboxPolicy: cfg.Sandbox.Policy(),
		Wrapper:       sandboxWrapper(cfg),
	}
	opts := orchestrator.RunOptions{SkipApproval: runSkipApproval, SkipSandbox: runSkipSandbox}

	var results []runtime.CallResult
	if runBatch != "" {
		calls, err := loadBatch(runBatch)
		if err != nil {
			return err
		}
		results = rt.ExecuteBatchWithIDs(cmd.Context(), calls, toolCtx, opts)
	} else {
		input := json.RawMessage(`{}`)
		if len(args) > 1 {
			input = json.RawMessage(args[1])
		}
		results = []runtime.CallResult{
			rt.Execute(cmd.Context(), runtime.Call{ID: "1", Name: args[0], Input: input}, toolCtx, opts),
		}
	}

	if err := cache.Save(); err != nil {
		logging.Warn().Err(err).Msg("failed to persist approval cache")
	}

	return printResults(results)
}

func buildRegistry(cfg *config.Config) *tool.Registry {
	registry := tool.NewRegistry()
	for _, t := range tool.DefaultRegistry(cfg.WorkDir).List() {
		if enabled, ok := cfg.Tools[t.Name()]; ok && !enabled {
			continue
		}
		registry.Register(t)
	}
	return registry
}

func sandboxWrapper(cfg *config.Config) sandbox.Wrapper {
	if cfg.Sandbox == nil || len(cfg.Sandbox.Launchers) == 0 {
		return nil
	}
	launchers := make(map[sandbox.Kind][]string, len(cfg.Sandbox.Launchers))
	for kind, argv := range cfg.Sandbox.Launchers {
		launchers[sandbox.Kind(kind)] = argv
	}
	return sandbox.NewExecWrapper(launchers)
}

func loadBatch(path string) ([]runtime.Call, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var calls []runtime.Call
	if err := json.Unmarshal(data, &calls); err != nil {
		return nil, fmt.Errorf("parse batch file %s: %w", path, err)
	}
	return calls, nil
}

// promptApprover answers approval requests on the terminal.
func promptApprover(broker *approval.Broker) {
	reader := bufio.NewReader(os.Stdin)
	for pending := range broker.Requests() {
		fmt.Fprintf(os.Stderr, "\n%s wants to run", pending.ToolName)
		if pending.Reason != "" {
			fmt.Fprintf(os.Stderr, ": %s", pending.Reason)
		}
		fmt.Fprintf(os.Stderr, "\n  [y] once  [s] session  [a] always  [n] deny  > ")

		line, err := reader.ReadString('\n')
		if err != nil {
			pending.Cancel()
			continue
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			pending.Respond(approval.Reply{Kind: approval.ReplyApproveOnce})
		case "s", "session":
			pending.Respond(approval.Reply{Kind: approval.ReplyApprove})
		case "a", "always":
			pending.Respond(approval.Reply{Kind: approval.ReplyApproveAll})
		default:
			pending.Respond(approval.Reply{Kind: approval.ReplyDeny, Reason: "denied at prompt"})
		}
	}
}

func printResults(results []runtime.CallResult) error {
	if runFormat == "json" {
		type jsonResult struct {
			ID     string       `json:"id"`
			Name   string       `json:"name"`
			Result *tool.Result `json:"result,omitempty"`
			Error  string       `json:"error,omitempty"`
		}
		out := make([]jsonResult, 0, len(results))
		for _, r := range results {
			jr := jsonResult{ID: r.ID, Name: r.Name, Result: r.Result}
			if r.Err != nil {
				jr.Error = r.Err.Error()
			}
			out = append(out, jr)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	var firstErr error
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Name, r.Err)
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		if r.Result.Title != "" {
			fmt.Printf("== %s\n", r.Result.Title)
		}
		fmt.Println(r.Result.Output)
	}
	return firstErr
}
