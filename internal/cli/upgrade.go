// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cosi-project/sqlbatch/pkg/executor"
	"github.com/cosi-project/sqlbatch/pkg/provider"
	"github.com/cosi-project/sqlbatch/pkg/upgrade"
)

func (a *app) upgradeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Execute scripts which are not recorded in the journal yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd.Context(), func(ctx context.Context, engine *upgrade.Engine) error {
				result, err := engine.PerformUpgrade(ctx)

				for _, s := range result.Scripts {
					fmt.Fprintf(cmd.OutOrStdout(), "executed %s\n", s.Name)
				}

				if err != nil {
					var execErr *executor.ExecutionError

					if errors.As(err, &execErr) && execErr.ScriptLine > 0 {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s:%d: %s\n", execErr.Script, execErr.ScriptLine, execErr.Message)
					}

					if result.ErrorScript != nil {
						return fmt.Errorf("upgrade failed at %s: %w", result.ErrorScript.Name, err)
					}

					return err
				}

				if len(result.Scripts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
				}

				return nil
			})
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List scripts which are not recorded in the journal yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd.Context(), func(ctx context.Context, engine *upgrade.Engine) error {
				pending, err := engine.ScriptsToExecute(ctx)
				if err != nil {
					return err
				}

				if len(pending) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")

					return nil
				}

				for _, s := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "pending %s\n", s.Name)
				}

				return nil
			})
		},
	}
}

// withEngine opens the target database and builds the upgrade engine over the scripts directory.
func (a *app) withEngine(ctx context.Context, fn func(context.Context, *upgrade.Engine) error) (err error) {
	s, err := a.settings()
	if err != nil {
		return err
	}

	defer s.logger.Sync() //nolint:errcheck

	t, err := openTarget(s.url, s)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := t.close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing database: %w", closeErr)
		}
	}()

	opts := []executor.Option{
		executor.WithLogger(s.logger),
		executor.WithVariables(s.variables),
	}

	if s.schema != "" {
		opts = append(opts, executor.WithSchema(s.schema))
	}

	if s.separator != "" {
		opts = append(opts, executor.WithSeparator(s.separator))
	}

	exec, err := executor.New(t.connector, opts...)
	if err != nil {
		return err
	}

	engine, err := upgrade.NewEngine(provider.NewFS(os.DirFS(s.dir)), t.journal, exec, upgrade.WithLogger(s.logger))
	if err != nil {
		return err
	}

	s.logger.Debug("using environment",
		zap.String("environment", s.environment),
		zap.String("driver", t.driver),
		zap.String("dir", s.dir),
	)

	return fn(ctx, engine)
}
