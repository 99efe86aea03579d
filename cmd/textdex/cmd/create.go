package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textdex/internal/service"
)

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var mappingFile string

	cmd := &cobra.Command{
		Use:   "create <index>",
		Short: "Create an empty index",
		Long: `Create an empty index. A mapping must be set before documents can be
indexed; pass --mapping to set it in the same step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			out := opts.writer(cmd.OutOrStdout())

			return opts.withService(func(svc *service.Service) error {
				if err := svc.CreateIndex(name); err != nil {
					return err
				}
				if mappingFile != "" {
					s, err := readSchema(cmd.InOrStdin(), mappingFile)
					if err != nil {
						return err
					}
					if err := svc.SetMapping(name, s); err != nil {
						return err
					}
				}
				out.Successf("Created index %s", name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&mappingFile, "mapping", "m", "", "Mapping file (YAML or JSON) to set after creation")
	return cmd
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <index>",
		Aliases: []string{"rm"},
		Short:   "Remove an index and all its documents",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return opts.withService(func(svc *service.Service) error {
				if err := svc.RemoveIndex(name); err != nil {
					return err
				}
				opts.writer(cmd.OutOrStdout()).Successf("Removed index %s", name)
				return nil
			})
		},
	}
}
