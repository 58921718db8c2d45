package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/renewal/internal/store"
)

// FeatureStatus reports the renewal feature gate of a tenant.
type FeatureStatus struct {
	Tenant  int64  `json:"tenant"`
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

// NewFeatureCommand creates the feature command group, which turns
// renewal triggers on or off for a tenant.
func NewFeatureCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feature",
		Short: "Turn renewal triggers on or off for a tenant",
	}
	cmd.AddCommand(newFeatureSetCommand(rootOpts, "enable", true))
	cmd.AddCommand(newFeatureSetCommand(rootOpts, "disable", false))
	cmd.AddCommand(&cobra.Command{
		Use:           "status",
		Short:         "Show whether renewal triggers are enabled",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return featureCommand(rootOpts, cmd, nil)
		},
	})
	return cmd
}

func newFeatureSetCommand(rootOpts *RootOptions, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         fmt.Sprintf("%s renewal triggers", use),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return featureCommand(rootOpts, cmd, &enabled)
		},
	}
}

// featureCommand sets the gate when set is non-nil, then reports it.
func featureCommand(rootOpts *RootOptions, cmd *cobra.Command, set *bool) error {
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

	ctx := cmd.Context()
	if set != nil {
		if err := st.SetFeature(ctx, cfg.Tenant, store.FeatureRenewalTriggers, *set); err != nil {
			return WrapExitError(ExitFailure, "failed to set feature", err)
		}
	}
	enabled, err := st.FeatureEnabled(ctx, cfg.Tenant, store.FeatureRenewalTriggers)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read feature", err)
	}
	status := FeatureStatus{Tenant: cfg.Tenant, Feature: store.FeatureRenewalTriggers, Enabled: enabled}
	return rootOpts.formatter(cmd).Success(status, func(w io.Writer) {
		state := "disabled"
		if enabled {
			state = "enabled"
		}
		fmt.Fprintf(w, "%s is %s for tenant %d\n", status.Feature, state, status.Tenant)
	})
}
