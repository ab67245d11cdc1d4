// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package opttester runs datadriven optimizer tests. Each test case holds an
// expression in the exprgen syntax and a command that says what to do with
// it.
package opttester

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/settings"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/exprgen"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/testutils/refexec"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/xform"
	"github.com/cockroachdb/optrewrite/pkg/util/intsets"
	"github.com/pmezard/go-difflib/difflib"
)

// OptTester is a helper for testing the various optimizer components. It
// contains the boiler-plate code for the following useful tasks:
//   - Build an unoptimized expression tree
//   - Optimize an expression tree, optionally showing every applied rule
//   - Insert an expression into a memo
//   - Compare the results of the original and the optimized tree
//
// An OptTester runs a single test case and must not be reused.
type OptTester struct {
	Flags Flags

	catalog *testcat.Catalog
	fns     *scalar.Registry
	input   string
	ctx     context.Context
	md      opt.Metadata

	seenRules intsets.Fast
	builder   strings.Builder
}

// Flags are control knobs for tests. Note that specific testcases can
// override these defaults.
type Flags struct {
	// ExprFormat controls the output detail of build / opt/ optsteps command
	// directives.
	ExprFormat memo.ExprFmtFlags

	// DisableRules is a set of rules that are not allowed to run.
	DisableRules intsets.Fast

	// ExpectedRules is a set of rules which must be exercised for the test to
	// pass.
	ExpectedRules intsets.Fast

	// UnexpectedRules is a set of rules which must not be exercised for the
	// test to pass.
	UnexpectedRules intsets.Fast

	// Settings holds the setting overrides of the test case.
	Settings []SettingOverride

	// Raw makes the memo command insert the input instead of the optimized
	// expression.
	Raw bool

	// Ordering and Distribution are the required physical properties used by
	// the physprops command, in exprgen syntax.
	Ordering     []string
	Distribution []string
}

// SettingOverride is a cluster setting value used by one test case.
type SettingOverride struct {
	Key   string
	Value string
}

// New constructs a new instance of the OptTester for the given input. Tables
// are resolved in the catalog, which is shared by the test cases of a file.
func New(catalog *testcat.Catalog, input string) *OptTester {
	return &OptTester{
		Flags: Flags{
			ExprFormat: memo.ExprFmtHideMiscProps | memo.ExprFmtHidePhysProps,
		},
		catalog: catalog,
		fns:     scalar.NewBuiltinRegistry(),
		input:   input,
		ctx:     context.Background(),
	}
}

// RunCommand implements commands that are used by most tests:
//
//   - create-table name=<table> cols=(<col>,...) [row-count=<n>]
//
//     Adds a table to the catalog. Each input line is a row of comma-separated
//     values.
//
//   - build [flags]
//
//     Builds an expression tree from the input and outputs it.
//
//   - opt [flags]
//
//     Builds and optimizes the expression tree and outputs the result.
//
//   - optsteps [flags]
//
//     Outputs the expression after each rule that changed it, as a diff
//     against the previous one.
//
//   - memo [flags]
//
//     Inserts the optimized expression (or the input, with the raw flag) into
//     a memo and outputs the memo.
//
//   - physprops ordering=(...) distribution=(...) [flags]
//
//     Outputs the physical properties provided by the input, and the
//     enforcers it would need to satisfy the required ones.
//
//   - rulestats [flags]
//
//     Optimizes the input and outputs how often each rule matched and was
//     applied.
//
//   - exec [flags]
//
//     Runs the input and the optimized expression against the table contents
//     and fails if their results differ. Outputs the rows of the result.
//
// Supported flags:
//
//   - format: controls the formatting of expressions for build, opt and
//     optsteps commands. Possible values: show-all, hide-miscprops,
//     hide-physprops, hide-columns, hide-scalars, hide-all.
//
//   - disable: disables optimizer rules by name. Example:
//     opt disable=(PushDownFilterJoin,MergeFilter)
//
//   - expect: fails the test if the rules specified by name are not "applied".
//
//   - expect-not: fails the test if the rules specified by name are "applied".
//
//   - set: overrides cluster settings for the test case. Example:
//     opt set=(sql.optimizer.join_reorder.enabled=false)
//
//   - raw: used with memo to insert the unoptimized input.
func (ot *OptTester) RunCommand(tb testing.TB, d *datadriven.TestData) string {
	if d.Cmd == "create-table" {
		return ot.createTable(tb, d)
	}

	// Allow testcases to override the flags.
	for _, a := range d.CmdArgs {
		if err := ot.Flags.Set(a); err != nil {
			d.Fatalf(tb, "%+v", err)
		}
	}

	switch d.Cmd {
	case "build":
		e, err := ot.Build()
		if err != nil {
			return fmt.Sprintf("error: %s\n", err)
		}
		memo.CheckExpr(e)
		return ot.FormatExpr(e)

	case "opt":
		e, err := ot.Optimize()
		if err != nil {
			return fmt.Sprintf("error: %s\n", err)
		}
		ot.postProcess(tb, d, e)
		return ot.FormatExpr(e)

	case "optsteps":
		result, err := ot.OptSteps()
		if err != nil {
			return fmt.Sprintf("error: %s\n", err)
		}
		return result

	case "memo":
		result, err := ot.Memo()
		if err != nil {
			return fmt.Sprintf("error: %s\n", err)
		}
		return result

	case "physprops":
		result, err := ot.PhysProps()
		if err != nil {
			return fmt.Sprintf("error: %s\n", err)
		}
		return result

	case "rulestats":
		result, err := ot.RuleStats()
		if err != nil {
			return fmt.Sprintf("error: %s\n", err)
		}
		return result

	case "exec":
		result, err := ot.Exec()
		if err != nil {
			d.Fatalf(tb, "%+v", err)
		}
		return result

	default:
		d.Fatalf(tb, "unsupported command: %s", d.Cmd)
		return ""
	}
}

// Set parses an argument that refers to a flag.
// See OptTester.RunCommand for supported flags.
func (f *Flags) Set(arg datadriven.CmdArg) error {
	switch arg.Key {
	case "format":
		if len(arg.Vals) == 0 {
			return errors.Errorf("format flag requires value(s)")
		}
		f.ExprFormat = 0
		for _, v := range arg.Vals {
			fmtFlag, ok := memo.ExprFmtFlagsByName[v]
			if !ok {
				return errors.Errorf("unknown format value %s", v)
			}
			f.ExprFormat |= fmtFlag
		}

	case "disable":
		for _, s := range arg.Vals {
			r, err := ruleFromString(s)
			if err != nil {
				return err
			}
			f.DisableRules.Add(int(r))
		}

	case "expect":
		for _, s := range arg.Vals {
			r, err := ruleFromString(s)
			if err != nil {
				return err
			}
			f.ExpectedRules.Add(int(r))
		}

	case "expect-not":
		for _, s := range arg.Vals {
			r, err := ruleFromString(s)
			if err != nil {
				return err
			}
			f.UnexpectedRules.Add(int(r))
		}

	case "set":
		for _, s := range arg.Vals {
			key, value, ok := strings.Cut(s, "=")
			if !ok {
				return errors.Errorf("expected set=(key=value,...), found %q", s)
			}
			f.Settings = append(f.Settings, SettingOverride{Key: key, Value: value})
		}

	case "raw":
		f.Raw = true

	case "ordering":
		f.Ordering = arg.Vals

	case "distribution":
		if len(arg.Vals) == 0 {
			return errors.Errorf("distribution flag requires a kind")
		}
		f.Distribution = arg.Vals

	default:
		return errors.Errorf("unknown argument: %s", arg.Key)
	}
	return nil
}

// createTable adds a table to the catalog. The input lines are its rows.
func (ot *OptTester) createTable(tb testing.TB, d *datadriven.TestData) string {
	var name string
	var cols []string
	rowCount := int64(-1)
	for _, a := range d.CmdArgs {
		switch a.Key {
		case "name":
			name = a.Vals[0]
		case "cols":
			cols = a.Vals
		case "row-count":
			var err error
			if rowCount, err = strconv.ParseInt(a.Vals[0], 10, 64); err != nil {
				d.Fatalf(tb, "%+v", err)
			}
		default:
			d.Fatalf(tb, "unknown argument: %s", a.Key)
		}
	}

	var rows [][]scalar.Datum
	for _, line := range strings.Split(d.Input, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := testcat.ParseRow(line)
		if err != nil {
			return fmt.Sprintf("error: %s\n", err)
		}
		rows = append(rows, row)
	}
	tab, err := ot.catalog.CreateTable(name, cols, rows, rowCount)
	if err != nil {
		return fmt.Sprintf("error: %s\n", err)
	}
	return fmt.Sprintf("TABLE %s\n", tab)
}

// Build constructs the expression tree described by the input, without
// optimizing it.
func (ot *OptTester) Build() (*memo.SExpr, error) {
	return exprgen.Build(ot.ctx, ot.catalog, &ot.md, ot.fns, ot.input)
}

// FormatExpr formats the expression with the flags of the test case.
func (ot *OptTester) FormatExpr(e *memo.SExpr) string {
	return memo.FormatExpr(e, ot.Flags.ExprFormat, &ot.md, ot.fns)
}

// Optimize builds the input and applies the default rule set to it.
func (ot *OptTester) Optimize() (*memo.SExpr, error) {
	e, err := ot.Build()
	if err != nil {
		return nil, err
	}
	o, err := ot.makeOptimizer()
	if err != nil {
		return nil, err
	}
	return o.Optimize(ot.ctx, e)
}

// makeOptimizer returns an optimizer for one run over the default rule set,
// which honors the flags of the test case and records every applied rule.
func (ot *OptTester) makeOptimizer() (*xform.HeuristicOptimizer, error) {
	sv := settings.MakeValues()
	xform.CheckExpressions.Override(sv, true)
	for _, s := range ot.Flags.Settings {
		if err := sv.Set(s.Key, s.Value); err != nil {
			return nil, err
		}
	}
	oc, err := xform.NewOptimizeContext(&ot.md, ot.fns, ot.catalog, sv)
	if err != nil {
		return nil, err
	}
	ot.Flags.DisableRules.ForEach(func(r int) {
		oc.DisableRule(opt.RuleName(r))
	})
	o := xform.NewHeuristicOptimizer(oc, xform.DefaultRuleSet())
	o.NotifyOnAppliedRule(func(name opt.RuleName, _, _ *memo.SExpr, _ []int) {
		ot.seenRules.Add(int(name))
	})
	return o, nil
}

// postProcess checks the expression and the expected and unexpected rules.
func (ot *OptTester) postProcess(tb testing.TB, d *datadriven.TestData, e *memo.SExpr) {
	memo.CheckExpr(e)

	if !ot.Flags.ExpectedRules.SubsetOf(ot.seenRules) {
		unseen := ot.Flags.ExpectedRules.Difference(ot.seenRules)
		d.Fatalf(tb, "expected to see %s, but was not triggered. Did see %s",
			ruleNames(unseen), ruleNames(ot.seenRules))
	}

	if ot.Flags.UnexpectedRules.Intersects(ot.seenRules) {
		seen := ot.Flags.UnexpectedRules.Intersection(ot.seenRules)
		d.Fatalf(tb, "expected not to see %s, but it was triggered", ruleNames(seen))
	}
}

// optStep is the state of the tree after a rule was applied.
type optStep struct {
	rule opt.RuleName
	expr string
}

// OptSteps optimizes the input and returns the initial expression, the diff
// after every rule application, and the final expression. A rule that
// rewrote the tree without changing its formatted output is listed with
// "(no changes)".
func (ot *OptTester) OptSteps() (string, error) {
	e, err := ot.Build()
	if err != nil {
		return "", err
	}
	o, err := ot.makeOptimizer()
	if err != nil {
		return "", err
	}
	var steps []optStep
	o.NotifyOnAppliedRule(func(name opt.RuleName, _, after *memo.SExpr, _ []int) {
		ot.seenRules.Add(int(name))
		steps = append(steps, optStep{rule: name, expr: ot.FormatExpr(after)})
	})
	final, err := o.Optimize(ot.ctx, e)
	if err != nil {
		return "", err
	}

	ot.builder.Reset()
	prev := ot.FormatExpr(e)
	ot.bestHeader("Initial expression\n")
	ot.indent(prev)
	for _, s := range steps {
		if s.expr == prev {
			ot.altHeader("%s (no changes)\n", s.rule)
			continue
		}
		diff, err := ot.diff(prev, s.expr)
		if err != nil {
			return "", err
		}
		ot.bestHeader("%s\n", s.rule)
		ot.indent(diff)
		prev = s.expr
	}
	ot.bestHeader("Final best expression\n")
	ot.indent(ot.FormatExpr(final))
	return ot.builder.String(), nil
}

// diff returns a unified diff of the two trees without the hunk header.
func (ot *OptTester) diff(before, after string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:       difflib.SplitLines(before),
		B:       difflib.SplitLines(after),
		Context: 100,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", err
	}
	// Skip the "@@ ... @@" header (first line).
	parts := strings.SplitN(text, "\n", 2)
	if len(parts) < 2 {
		return "", nil
	}
	return parts[1], nil
}

// Memo inserts the optimized expression, or with the raw flag the input, into
// a new memo and returns the memo dump.
func (ot *OptTester) Memo() (string, error) {
	var e *memo.SExpr
	var err error
	if ot.Flags.Raw {
		e, err = ot.Build()
	} else {
		e, err = ot.Optimize()
	}
	if err != nil {
		return "", err
	}
	m := memo.New(&ot.md)
	root, err := m.Insert(e)
	if err != nil {
		return "", err
	}
	m.SetRoot(root)
	if extracted := m.Extract(root); !extracted.Equals(e) {
		return "", errors.AssertionFailedf("memo does not round-trip:\n%s", ot.FormatExpr(extracted))
	}
	return m.FormatMemo(ot.fns), nil
}

// PhysProps returns the physical properties provided by the input and the
// enforcers needed to satisfy the required properties given by the ordering
// and distribution flags.
func (ot *OptTester) PhysProps() (string, error) {
	e, err := ot.Build()
	if err != nil {
		return "", err
	}
	var props []string
	if len(ot.Flags.Ordering) != 0 {
		props = append(props, "(ordering "+strings.Join(ot.Flags.Ordering, " ")+")")
	}
	if len(ot.Flags.Distribution) != 0 {
		props = append(props, "(distribution "+strings.Join(ot.Flags.Distribution, " ")+")")
	}
	required, err := exprgen.BuildRequired(&ot.md, e.OutputCols(), "("+strings.Join(props, " ")+")")
	if err != nil {
		return "", err
	}

	ot.builder.Reset()
	ot.output("required: %s\n", required)
	provided := e.DerivePhysicalProp().String()
	if provided == "" {
		provided = "[]"
	}
	ot.output("provided: %s\n", provided)
	enforcers := memo.EnforcersNeeded(e, required)
	if len(enforcers) == 0 {
		ot.output("no enforcers needed\n")
	}
	for _, enf := range enforcers {
		ot.output("%s\n", enf)
	}
	return ot.builder.String(), nil
}

// RuleStats optimizes the input and returns the number of times each rule
// matched and was applied, most applied first.
func (ot *OptTester) RuleStats() (string, error) {
	e, err := ot.Build()
	if err != nil {
		return "", err
	}
	o, err := ot.makeOptimizer()
	if err != nil {
		return "", err
	}
	if _, err := o.Optimize(ot.ctx, e); err != nil {
		return "", err
	}
	stats := o.Stats()
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Applied > stats[j].Applied
	})
	applied := 0
	for i := range stats {
		applied += stats[i].Applied
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Rules applied %d times.\n", applied)
	tw := tabwriter.NewWriter(&buf, 1 /* minwidth */, 1 /* tabwidth */, 1 /* padding */, ' ', 0)
	fmt.Fprintf(tw, "rule\tmatched\tapplied\n")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Rule, s.Matched, s.Applied)
	}
	_ = tw.Flush()
	return buf.String(), nil
}

// Exec runs the input and the optimized expression and returns the rows of
// the optimized one. It fails if the two results differ. Rows are sorted
// unless the input ends in a sort.
func (ot *OptTester) Exec() (string, error) {
	e, err := ot.Build()
	if err != nil {
		return "", err
	}
	o, err := ot.makeOptimizer()
	if err != nil {
		return "", err
	}
	optimized, err := o.Optimize(ot.ctx, e)
	if err != nil {
		return "", err
	}

	ex := refexec.New(&ot.md, ot.fns)
	expected, err := ex.Execute(ot.ctx, e)
	if err != nil {
		return "", err
	}
	actual, err := ex.Execute(ot.ctx, optimized)
	if err != nil {
		return "", err
	}
	ordered := e.Op() == opt.SortOp
	if !expected.Equivalent(actual, ordered) {
		return "", errors.Newf("optimized expression returned different rows\nexpected:\n%sactual:\n%s",
			expected, actual)
	}
	if !ordered {
		actual.Sort()
	}
	return actual.String(), nil
}

func (ot *OptTester) output(format string, args ...interface{}) {
	fmt.Fprintf(&ot.builder, format, args...)
}

func (ot *OptTester) separator(sep string) {
	ot.output("%s\n", strings.Repeat(sep, 80))
}

func (ot *OptTester) bestHeader(format string, args ...interface{}) {
	ot.separator("=")
	ot.output(format, args...)
	ot.separator("=")
}

func (ot *OptTester) altHeader(format string, args ...interface{}) {
	ot.separator("-")
	ot.output(format, args...)
	ot.separator("-")
}

func (ot *OptTester) indent(str string) {
	str = strings.TrimRight(str, " \n\t\r")
	lines := strings.Split(str, "\n")
	for _, line := range lines {
		ot.output("  %s\n", line)
	}
}

// ruleFromString returns the rule that matches the given string,
// or an error if there is no such rule.
func ruleFromString(str string) (opt.RuleName, error) {
	r, ok := opt.RuleNameFromString(str)
	if !ok {
		return opt.InvalidRuleName, errors.Newf("rule '%s' does not exist", str)
	}
	return r, nil
}

func ruleNames(rules intsets.Fast) string {
	var names []string
	rules.ForEach(func(r int) {
		names = append(names, opt.RuleName(r).String())
	})
	return strings.Join(names, ", ")
}
