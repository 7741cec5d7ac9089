// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cosi-project/sqlbatch/pkg/executor"
	"github.com/cosi-project/sqlbatch/pkg/preprocess"
	"github.com/cosi-project/sqlbatch/pkg/splitter"
)

func (a *app) splitCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Print the batches of a script without executing them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings()
			if err != nil {
				return err
			}

			contents, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading script: %w", err)
			}

			var pipelineOpts []preprocess.Option
			if raw {
				pipelineOpts = append(pipelineOpts, preprocess.WithVariablesDisabled())
			}

			schema := s.schema
			if schema == "" {
				schema = executor.DefaultSchema
			}

			text, err := preprocess.NewPipeline(pipelineOpts...).Process(string(contents), s.variables.WithSchema(schema))
			if err != nil {
				return fmt.Errorf("preprocessing %s: %w", filepath.Base(args[0]), err)
			}

			split, err := splitter.New(splitter.WithSeparator(override(splitter.DefaultSeparator, s.separator)))
			if err != nil {
				return err
			}

			for _, batch := range split.Batches(text) {
				fmt.Fprintf(cmd.OutOrStdout(), "-- batch %d (line %d)\n%s\n", batch.Index, batch.Line, batch.Text)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "do not substitute variables")

	return cmd
}
