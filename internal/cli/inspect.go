package cli

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/reglet-dev/reglet-compose/application/schema"
	"github.com/reglet-dev/reglet-compose/capability"
)

func newProtocolCommand(o *options, streams IOStreams) *cobra.Command {
	var asSchema bool
	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "List what every unit requires from the engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			s, err := o.open(ctx, cmd, streams)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close(ctx) }()

			registry := s.model.Registry()
			if asSchema {
				doc, err := schema.Document(registry)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(streams.Out, string(doc))
				return err
			}
			return protocolTable(streams.Out, registry.Rows())
		},
	}
	cmd.Flags().BoolVar(&asSchema, "schema", false, "print JSON schemas instead of a table")
	return cmd
}

func protocolTable(w io.Writer, rows []capability.Row) error {
	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow(heading.Sprint("UNIT"), heading.Sprint("MEMBER"), heading.Sprint("EXPECTED"),
		heading.Sprint("STRATEGY"), heading.Sprint("DESCRIPTION"))
	for _, r := range rows {
		table.AddRow(r.Unit, r.Member, r.Expected, r.Strategy, r.Doc)
	}
	_, err := fmt.Fprintln(w, table)
	return err
}

func newParametersCommand(o *options, streams IOStreams) *cobra.Command {
	var asSchema bool
	cmd := &cobra.Command{
		Use:   "parameters",
		Short: "Show the parameters the engine would start with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			s, err := o.open(ctx, cmd, streams)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close(ctx) }()

			p := s.model.Params
			if asSchema {
				doc, err := schema.ParametersSchema(p.Values(), schema.WithTitle("parameters"))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(streams.Out, string(doc))
				return err
			}
			_, err = fmt.Fprintln(streams.Out, p.String())
			return err
		},
	}
	cmd.Flags().BoolVar(&asSchema, "schema", false, "print a JSON schema of the parameters")
	return cmd
}
