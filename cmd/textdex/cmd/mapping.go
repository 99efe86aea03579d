package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/schema"
	"github.com/Aman-CERP/textdex/internal/service"
)

func newMappingCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Show or replace the field mapping of an index",
		Long: `A mapping lists the fields of an index:

  fields:
    - name: title
      type: text        # string, text, int32, double or single
      indexed: true
      stored: true
      primary: true     # exactly one field; unqualified query terms target it
    - name: year
      type: int32
      indexed: true
      stored: true`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <index> <file|->",
		Short: "Replace the mapping of an index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readSchema(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			return opts.withService(func(svc *service.Service) error {
				if err := svc.SetMapping(args[0], s); err != nil {
					return err
				}
				opts.writer(cmd.OutOrStdout()).Successf("Mapping of %s set (%d fields)", args[0], len(s.Fields))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <index>",
		Short: "Print the mapping of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *service.Service) error {
				s, err := svc.GetMapping(args[0])
				if err != nil {
					return err
				}
				out := opts.writer(cmd.OutOrStdout())
				if opts.jsonOutput {
					return out.JSON(s)
				}
				data, err := yaml.Marshal(s)
				if err != nil {
					return fmt.Errorf("failed to encode mapping: %w", err)
				}
				out.Raw(string(data))
				return nil
			})
		},
	})

	return cmd
}

// readSchema reads a mapping from path, or from stdin when path is "-".
// JSON is accepted since it is valid YAML.
func readSchema(stdin io.Reader, path string) (*schema.Schema, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, txerrors.IOError(fmt.Sprintf("failed to read mapping %s", path), err)
	}

	var s schema.Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, txerrors.SchemaError(fmt.Sprintf("failed to parse mapping %s: %v", path, err))
	}
	return &s, nil
}
