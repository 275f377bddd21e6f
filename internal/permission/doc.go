/*
Package permission provides rule-based permission evaluation for tool execution.

An Evaluator holds an ordered list of rules, each mapping a permission string
and a glob path pattern to an action (allow, deny, ask). Rules are scanned in
reverse registration order, so later rules override earlier ones; this lets a
configuration layer broad denials under narrow allowances:

	e, _ := permission.NewEvaluator(
		permission.Rule{Permission: "file:write", Pattern: "**", Action: permission.ActionDeny},
		permission.Rule{Permission: "file:write", Pattern: "src/**", Action: permission.ActionAllow},
	)
	e.Evaluate("file:write", "src/main.go") // allow
	e.Evaluate("file:write", "tests/t.go")  // deny

With no matching rule the default is Allow: an unconfigured evaluator permits
everything. Pattern compilation errors surface at registration time as
*PatternError; evaluation itself is total and side-effect free.

The package also parses shell command lines (via mvdan.cc/sh) into their
constituent simple commands so that approval patterns like "git commit *" can
be derived and matched.
*/
package permission
