package permission

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Command is a single simple command extracted from a shell command line.
type Command struct {
	Name       string   // executable name, e.g. "git"
	Args       []string // arguments following the name
	Subcommand string   // first non-flag argument, e.g. "commit" in "git commit"
}

// ParseCommands parses a shell command line into the simple commands it runs.
// Pipelines, lists and substitutions all contribute their commands, so a
// policy check sees every executable the line would invoke.
func ParseCommands(command string) ([]Command, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var commands []Command
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd := commandFromCall(call); cmd != nil {
				commands = append(commands, *cmd)
			}
		}
		return true
	})

	return commands, nil
}

func commandFromCall(call *syntax.CallExpr) *Command {
	if len(call.Args) == 0 {
		return nil
	}

	cmd := &Command{Name: wordToString(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}

	for _, arg := range call.Args[1:] {
		argStr := wordToString(arg)
		cmd.Args = append(cmd.Args, argStr)
		if cmd.Subcommand == "" && !strings.HasPrefix(argStr, "-") {
			cmd.Subcommand = argStr
		}
	}

	return cmd
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			// Content of a substitution is unknowable statically.
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// CommandPattern builds the approval pattern a command generalizes to.
// "git commit -m msg" becomes "git commit *"; "ls -la" becomes "ls *".
func CommandPattern(cmd Command) string {
	if cmd.Subcommand != "" {
		return cmd.Name + " " + cmd.Subcommand + " *"
	}
	return cmd.Name + " *"
}

// CommandPatterns builds deduplicated approval patterns for a command list.
func CommandPatterns(commands []Command) []string {
	seen := make(map[string]bool)
	var patterns []string
	for _, cmd := range commands {
		p := CommandPattern(cmd)
		if !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// MatchCommandPattern checks if a command matches an approval pattern of the
// form "command subcommand *", "command *" or "*".
func MatchCommandPattern(pattern string, cmd Command) bool {
	parts := strings.Fields(pattern)
	if len(parts) == 0 {
		return false
	}

	if parts[0] == "*" && len(parts) == 1 {
		return true
	}
	if parts[0] != "*" && parts[0] != cmd.Name {
		return false
	}
	if len(parts) == 1 {
		return len(cmd.Args) == 0
	}

	if parts[len(parts)-1] == "*" {
		for i := 1; i < len(parts)-1; i++ {
			argIndex := i - 1
			if argIndex >= len(cmd.Args) {
				return false
			}
			if parts[i] != "*" && parts[i] != cmd.Args[argIndex] {
				return false
			}
		}
		return true
	}

	if len(parts)-1 != len(cmd.Args) {
		return false
	}
	for i := 1; i < len(parts); i++ {
		if parts[i] != cmd.Args[i-1] {
			return false
		}
	}
	return true
}

// mutatingCommands are commands that modify the filesystem and warrant
// path-level evaluation.
var mutatingCommands = map[string]bool{
	"rm":    true,
	"cp":    true,
	"mv":    true,
	"mkdir": true,
	"rmdir": true,
	"touch": true,
	"chmod": true,
	"chown": true,
	"dd":    true,
	"ln":    true,
}

// IsMutatingCommand reports whether a command modifies the filesystem.
func IsMutatingCommand(name string) bool {
	return mutatingCommands[name]
}

// IsWithinDir checks if path is dir or lies under it.
func IsWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
