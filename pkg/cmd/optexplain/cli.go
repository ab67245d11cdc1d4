// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optrewrite/pkg/settings"
	"github.com/cockroachdb/optrewrite/pkg/sql"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/exprgen"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/memo"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/scalar"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/optrewrite/pkg/sql/opt/xform"
	"github.com/cockroachdb/optrewrite/pkg/sql/plans"
	"github.com/cockroachdb/optrewrite/pkg/util/log"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// settingOverrides collects repeated --set key=value flags.
type settingOverrides struct {
	keys, vals []string
}

var _ pflag.Value = &settingOverrides{}

func (s *settingOverrides) String() string {
	parts := make([]string, len(s.keys))
	for i := range s.keys {
		parts[i] = s.keys[i] + "=" + s.vals[i]
	}
	return strings.Join(parts, ",")
}

func (s *settingOverrides) Set(v string) error {
	key, val, ok := strings.Cut(v, "=")
	if !ok {
		return errors.Newf("expected key=value, found %q", v)
	}
	key = strings.TrimSpace(key)
	if _, _, ok := settings.Lookup(key); !ok {
		return errors.Newf("unknown setting %q", key)
	}
	s.keys = append(s.keys, key)
	s.vals = append(s.vals, val)
	return nil
}

func (s *settingOverrides) Type() string {
	return "key=value"
}

type options struct {
	catalogPath  string
	settingsPath string
	overrides    settingOverrides
	verbosity    int32

	format      []string
	parallelism int
	ruleStats   bool
	mode        string
}

// values returns the setting overrides: the settings file first, then the
// --set flags in order.
func (o *options) values() (*settings.Values, error) {
	sv := settings.MakeValues()
	if o.settingsPath != "" {
		f, err := os.Open(o.settingsPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := settings.LoadOverrides(f, sv); err != nil {
			return nil, errors.Wrapf(err, "%s", o.settingsPath)
		}
	}
	for i := range o.overrides.keys {
		if err := sv.Set(o.overrides.keys[i], o.overrides.vals[i]); err != nil {
			return nil, err
		}
	}
	return sv, nil
}

func (o *options) catalog() (*testcat.Catalog, error) {
	if o.catalogPath == "" {
		return testcat.New(), nil
	}
	f, err := os.Open(o.catalogPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := loadCatalog(f)
	return c, errors.Wrapf(err, "%s", o.catalogPath)
}

func (o *options) exprFormat() (memo.ExprFmtFlags, error) {
	var flags memo.ExprFmtFlags
	for _, name := range o.format {
		f, ok := memo.ExprFmtFlagsByName[strings.TrimSpace(name)]
		if !ok {
			return 0, errors.Newf("unknown format %q", name)
		}
		flags |= f
	}
	return flags, nil
}

func (o *options) explainMode() (plans.ExplainMode, error) {
	for _, m := range []plans.ExplainMode{plans.ExplainPlan, plans.ExplainRaw, plans.ExplainMemo} {
		if o.mode == m.String() {
			return m, nil
		}
	}
	return 0, errors.Newf("unknown mode %q", o.mode)
}

func newRootCmd() *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:          "optexplain",
		Short:        "optimize plans and explain the result",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.SetVerbosity(o.verbosity)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.settingsPath, "settings-file", "", "YAML file with setting overrides")
	pf.Var(&o.overrides, "set", "override a setting, may be repeated")
	pf.Int32VarP(&o.verbosity, "verbosity", "v", 0, "log verbosity")

	optCmd := &cobra.Command{
		Use:   "opt FILE...",
		Short: "optimize each file and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpt(cmd.Context(), cmd.OutOrStdout(), &o, args)
		},
	}
	addOptFlags(optCmd.Flags(), &o)
	optCmd.Flags().StringVar(&o.mode, "mode", plans.ExplainPlan.String(), "plan, raw or memo")

	memoCmd := &cobra.Command{
		Use:   "memo FILE",
		Short: "optimize a file and print the memo built from the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.mode = plans.ExplainMemo.String()
			return runOpt(cmd.Context(), cmd.OutOrStdout(), &o, args)
		},
	}
	addOptFlags(memoCmd.Flags(), &o)

	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "list the optimizer settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sv, err := o.values()
			if err != nil {
				return err
			}
			writeSettings(cmd.OutOrStdout(), sv)
			return nil
		},
	}

	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "list the rewrite rules and their batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sv, err := o.values()
			if err != nil {
				return err
			}
			return writeRules(cmd.OutOrStdout(), sv)
		},
	}

	root.AddCommand(optCmd, memoCmd, settingsCmd, rulesCmd)
	return root
}

func addOptFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.catalogPath, "catalog", "", "YAML file describing the tables")
	fs.StringSliceVar(&o.format, "format", []string{"hide-miscprops", "hide-physprops"}, "expression format flags")
	fs.IntVar(&o.parallelism, "parallelism", runtime.GOMAXPROCS(0), "number of files optimized concurrently")
	fs.BoolVar(&o.ruleStats, "rule-stats", false, "print how often each rule was applied")
}

// runOpt optimizes every file concurrently and prints the results in the
// order of the files.
func runOpt(ctx context.Context, w io.Writer, o *options, files []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	catalog, err := o.catalog()
	if err != nil {
		return err
	}
	sv, err := o.values()
	if err != nil {
		return err
	}
	flags, err := o.exprFormat()
	if err != nil {
		return err
	}
	mode, err := o.explainMode()
	if err != nil {
		return err
	}
	fns := scalar.NewBuiltinRegistry()

	metrics := xform.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return err
	}

	results := make([]string, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if o.parallelism > 0 {
		g.SetLimit(o.parallelism)
	}
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			input, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			res, err := explainFile(ctx, catalog, fns, sv, metrics, mode, flags, string(input))
			if err != nil {
				return errors.Wrapf(err, "%s", file)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, res := range results {
		if len(files) > 1 {
			fmt.Fprintf(w, "-- %s\n", files[i])
		}
		fmt.Fprint(w, res)
	}
	if o.ruleStats {
		return writeRuleStats(w, reg)
	}
	return nil
}

// explainFile builds the plan in the input, routes it through the optimizer
// wrapped in an explain statement of the given mode, and formats the result.
func explainFile(
	ctx context.Context,
	catalog *testcat.Catalog,
	fns *scalar.Registry,
	sv *settings.Values,
	metrics *xform.Metrics,
	mode plans.ExplainMode,
	flags memo.ExprFmtFlags,
	input string,
) (string, error) {
	var md opt.Metadata
	e, err := exprgen.Build(ctx, catalog, &md, fns, stripComments(input))
	if err != nil {
		return "", err
	}
	oc, err := xform.NewOptimizeContext(&md, fns, catalog, sv)
	if err != nil {
		return "", err
	}
	oc.Metrics = metrics

	res, err := sql.Optimize(ctx, oc, &plans.Explain{
		Mode: mode,
		Plan: &plans.Query{Expr: e, Metadata: &md},
	})
	if err != nil {
		return "", err
	}
	optimized := res.(*plans.Explain).Plan.(*plans.Query).Expr

	if mode == plans.ExplainMemo {
		m := memo.New(&md)
		root, err := m.Insert(optimized)
		if err != nil {
			return "", err
		}
		m.SetRoot(root)
		return m.FormatMemo(fns), nil
	}
	return memo.FormatExpr(optimized, flags, &md, fns), nil
}

// stripComments removes lines starting with '#'.
func stripComments(input string) string {
	lines := strings.Split(input, "\n")
	out := lines[:0]
	for _, l := range lines {
		if !strings.HasPrefix(strings.TrimSpace(l), "#") {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}

func writeSettings(w io.Writer, sv *settings.Values) {
	table := newTable(w, "setting", "type", "default", "value", "description")
	for _, key := range settings.Keys() {
		s, desc, _ := settings.Lookup(key)
		table.Append([]string{key, s.Typ(), s.EncodedDefault(), s.Encoded(sv), desc})
	}
	table.Render()
}

func writeRules(w io.Writer, sv *settings.Values) error {
	disabled, err := xform.ParseRuleNames(xform.DisabledRules.Get(sv))
	if err != nil {
		return err
	}
	var off [opt.NumRuleNames]bool
	for _, r := range disabled {
		off[r] = true
	}

	rs := xform.DefaultRuleSet()
	table := newTable(w, "rule", "batches", "enabled")
	for _, r := range xform.AllRules() {
		var batches []string
		for i := 0; i < rs.BatchCount(); i++ {
			b := rs.Batch(i)
			for _, br := range b.Rules {
				if br.Name == r.Name {
					batches = append(batches, b.Name)
					break
				}
			}
		}
		table.Append([]string{r.Name.String(), strings.Join(batches, ","), strconv.FormatBool(!off[r.Name])})
	}
	table.Render()
	return nil
}

// writeRuleStats prints the rule application counters gathered from the
// registry.
func writeRuleStats(w io.Writer, reg *prometheus.Registry) error {
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	table := newTable(w, "rule", "applied")
	for _, mf := range mfs {
		if mf.GetName() != "sql_optimizer_rule_applications_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			var rule string
			for _, l := range m.GetLabel() {
				if l.GetName() == "rule" {
					rule = l.GetValue()
				}
			}
			table.Append([]string{rule, strconv.FormatFloat(m.GetCounter().GetValue(), 'f', -1, 64)})
		}
	}
	table.Render()
	return nil
}
