package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textdex/internal/service"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List indices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(func(svc *service.Service) error {
				infos, err := svc.ListIndices()
				if err != nil {
					return err
				}

				out := opts.writer(cmd.OutOrStdout())
				if opts.jsonOutput {
					return out.JSON(infos)
				}
				rows := make([][]string, 0, len(infos))
				for _, info := range infos {
					mapped := "no"
					if info.Mapped {
						mapped = "yes"
					}
					rows = append(rows, []string{info.Name, info.State, strconv.FormatUint(info.Documents, 10), mapped})
				}
				return out.Table([]string{"NAME", "STATE", "DOCUMENTS", "MAPPED"}, rows)
			})
		},
	}
}
