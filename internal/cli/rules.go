package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/renewal/internal/ir"
	"github.com/roach88/renewal/internal/resolver"
	"github.com/roach88/renewal/internal/store"
)

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage renewal rules",
	}
	cmd.AddCommand(newRulesImportCommand(rootOpts))
	cmd.AddCommand(newRulesListCommand(rootOpts))
	cmd.AddCommand(newRulesResolveCommand(rootOpts))
	cmd.AddCommand(newRulesDeactivateCommand(rootOpts))
	return cmd
}

// ImportResult reports a rules import.
type ImportResult struct {
	Files    int       `json:"files"`
	Imported []ir.Rule `json:"imported"`
	Skipped  []string  `json:"skipped,omitempty"`
	DryRun   bool      `json:"dry_run,omitempty"`
}

func newRulesImportCommand(rootOpts *RootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <file-or-dir>",
		Short: "Compile CUE rule files and store the rules",
		Long: `Compile administrator rule files written in CUE and insert the rules
for the tenant. A rule whose track and scope match an active rule is
skipped.

Example:
  renewal rules import --tenant 1 ./rules
  renewal rules import --tenant 1 ./rules/kyc.cue --dry-run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if err := requireTenant(cfg); err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)

			loaded, errs := LoadRules(args[0])
			if len(errs) > 0 {
				msgs := make([]string, len(errs))
				for i, e := range errs {
					msgs[i] = e.Error()
				}
				_ = out.Error(ErrCodeCompile, fmt.Sprintf("%d rule error(s)", len(errs)), msgs)
				return NewExitError(ExitFailure, "rules did not compile")
			}

			result := ImportResult{Files: loaded.FileCount, DryRun: dryRun}
			if dryRun {
				for _, r := range loaded.Rules {
					r.TenantID = cfg.Tenant
					if err := store.ValidateRule(r); err != nil {
						return WrapExitError(ExitFailure, "invalid rule", err)
					}
					result.Imported = append(result.Imported, r)
				}
				return out.Success(result, func(w io.Writer) { printImport(w, result) })
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			now := time.Now()
			for _, r := range loaded.Rules {
				r.TenantID = cfg.Tenant
				stored, err := st.InsertRule(cmd.Context(), r, now)
				if errors.Is(err, store.ErrDuplicateRule) {
					result.Skipped = append(result.Skipped, r.Name)
					continue
				}
				if err != nil {
					return WrapExitError(ExitFailure, "failed to store rule", err)
				}
				result.Imported = append(result.Imported, stored)
			}
			return out.Success(result, func(w io.Writer) { printImport(w, result) })
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compile and validate without storing")
	return cmd
}

func printImport(w io.Writer, res ImportResult) {
	verb := "Imported"
	if res.DryRun {
		verb = "Would import"
	}
	fmt.Fprintf(w, "%s %d rule(s) from %d file(s)\n", verb, len(res.Imported), res.Files)
	for _, r := range res.Imported {
		fmt.Fprintf(w, "  + %s (%s, rank %d)\n", r.Name, r.Track, r.Rank)
	}
	for _, name := range res.Skipped {
		fmt.Fprintf(w, "  = %s (already active)\n", name)
	}
}

func newRulesListCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List the tenant's rules",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if err := requireTenant(cfg); err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rules, err := st.ListRules(cmd.Context(), cfg.Tenant, all)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list rules", err)
			}
			if rules == nil {
				rules = []ir.Rule{}
			}
			return rootOpts.formatter(cmd).Success(rules, func(w io.Writer) { printRules(w, rules) })
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include deactivated rules")
	return cmd
}

func newRulesResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var risk, entityType, category int
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the rules that apply to a profile group",
		Long: `Show the rules a profile with the given risk tier, entity type and
category would be evaluated against, in evaluation order.

Example:
  renewal rules resolve --tenant 1 --risk 2 --type 5 --category 9`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if err := requireTenant(cfg); err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rules, err := resolver.New(st, cfg.Tenant).Resolve(cmd.Context(), risk, entityType, category)
			if errors.Is(err, resolver.ErrInvalidArgument) {
				return WrapExitError(ExitCommandError, "invalid profile group", err)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "failed to resolve rules", err)
			}
			if rules == nil {
				rules = []ir.Rule{}
			}
			return rootOpts.formatter(cmd).Success(rules, func(w io.Writer) {
				if resolver.ExcludeOnly(rules) {
					fmt.Fprintln(w, "Excluded from renewal.")
				}
				printRules(w, rules)
			})
		},
	}
	cmd.Flags().IntVar(&risk, "risk", 0, "risk tier (0 = unrated)")
	cmd.Flags().IntVar(&entityType, "type", 0, "entity type")
	cmd.Flags().IntVar(&category, "category", 0, "entity category")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newRulesDeactivateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "deactivate <rule-id>",
		Short:         "Deactivate a rule",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid rule id %q", args[0]))
			}
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if err := requireTenant(cfg); err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rule, err := st.GetRule(cmd.Context(), cfg.Tenant, id)
			if errors.Is(err, store.ErrNotFound) {
				return WrapExitError(ExitCommandError, "rule not found", err)
			}
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read rule", err)
			}
			if err := st.DeactivateRule(cmd.Context(), cfg.Tenant, id); err != nil {
				return WrapExitError(ExitFailure, "failed to deactivate rule", err)
			}
			rule.Active = false
			return rootOpts.formatter(cmd).Success(rule, func(w io.Writer) {
				fmt.Fprintf(w, "Rule %d (%s) deactivated.\n", rule.ID, rule.Name)
			})
		},
	}
}

func printRules(w io.Writer, rules []ir.Rule) {
	if len(rules) == 0 {
		fmt.Fprintln(w, "No rules.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTRACK\tDAYS\tRISK\tTYPE\tCATEGORY\tRANK\tFORM\tMODIFIER\tACTIVE")
	for _, r := range rules {
		modifier := "-"
		if r.HasModifier() {
			modifier = strconv.FormatInt(r.DateModifier, 10)
			if r.ModifierIsAbsolute {
				modifier += " (absolute)"
			}
		}
		form := r.FormRef
		if form == "" {
			form = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%d\t%s\t%s\t%t\n",
			r.ID, r.Name, r.Track, r.Days,
			scope(r.RiskTier), scope(r.EntityType), scope(r.EntityCategory),
			r.Rank, form, modifier, r.Active)
	}
	tw.Flush()
}

func scope(v int) string {
	if v == ir.Wildcard {
		return "*"
	}
	return strconv.Itoa(v)
}
