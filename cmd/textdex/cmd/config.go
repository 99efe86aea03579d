package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/textdex/internal/config"
	txerrors "github.com/Aman-CERP/textdex/internal/errors"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, initialize or restore configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := opts.writer(cmd.OutOrStdout())
			if opts.jsonOutput {
				return out.JSON(opts.cfg)
			}
			data, err := yaml.Marshal(opts.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			out.Raw(string(data))
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default user configuration",
		Long: `Write the default configuration to the user config file
($XDG_CONFIG_HOME/textdex/config.yaml). An existing file is only replaced with
--force, and is backed up first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := opts.writer(cmd.OutOrStdout())
			path := config.GetUserConfigPath()
			if config.UserConfigExists() && !force {
				out.Warningf("%s already exists (use --force to replace it)", path)
				return nil
			}

			backup, err := config.WriteUserConfig(config.NewConfig())
			if err != nil {
				return err
			}
			out.Successf("Wrote %s", path)
			if backup != "" {
				out.Dimf("previous config saved to %s", backup)
			}
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Replace an existing user config")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "backups",
		Short: "List user config backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			out := opts.writer(cmd.OutOrStdout())
			if opts.jsonOutput {
				return out.JSON(backups)
			}
			if len(backups) == 0 {
				out.Dimf("no backups of %s", config.GetUserConfigPath())
				return nil
			}
			for i, b := range backups {
				out.Raw(fmt.Sprintf("%d  %s", i+1, b))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore [n]",
		Short: "Restore a user config backup",
		Long: `Restore the nth backup listed by 'textdex config backups' (default 1,
the newest). The current user config is backed up first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 1 {
					return txerrors.ValidationError(fmt.Sprintf("invalid backup number %q", args[0]), err)
				}
				n = v
			}
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			if n > len(backups) {
				return txerrors.New(txerrors.ErrCodeConfigNotFound,
					fmt.Sprintf("no backup %d (%d available)", n, len(backups)), nil)
			}
			if err := config.RestoreUserConfig(backups[n-1]); err != nil {
				return txerrors.ConfigError("failed to restore config", err)
			}
			opts.writer(cmd.OutOrStdout()).Successf("Restored %s from %s", config.GetUserConfigPath(), backups[n-1])
			return nil
		},
	})

	return cmd
}
