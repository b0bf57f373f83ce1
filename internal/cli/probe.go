package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/drrm-datacore/internal/config"
	"github.com/pribylovaa/drrm-datacore/internal/core"
	"github.com/pribylovaa/drrm-datacore/internal/models"

	"github.com/pribylovaa/drrm-datacore/internal/pkg/log"
)

// NewProbeCommand подключается к хранилищу из конфигурации, выполняет
// минимальное чтение и печатает состояние подключения.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to the configured store and run a health check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if kind != "" {
				k, ok := models.ParseStoreKind(kind)
				if !ok {
					return fmt.Errorf("invalid kind %q", kind)
				}
				cfg.Store.Kind = string(k)
			}

			return runProbe(cmd, cfg, rootOpts.Format)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "store to probe (hosted|direct), overrides store.kind")

	return cmd
}

func runProbe(cmd *cobra.Command, cfg *config.Config, format string) error {
	logger := log.Setup(cfg.Env, cmd.ErrOrStderr())
	ctx := log.Into(cmd.Context(), logger)

	c, err := core.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.StoreKind() == models.KindNone {
		return fmt.Errorf("store.kind is none: nothing to probe")
	}

	startErr := c.Start(ctx)
	if startErr == nil {
		startErr = c.Probe(ctx)
	}

	if err := printState(cmd.OutOrStdout(), format, c.State()); err != nil {
		return err
	}

	if startErr != nil {
		logger.Warn("probe_failed", slog.String("err", startErr.Error()))
		return startErr
	}

	return nil
}

func printState(w io.Writer, format string, s models.ConnectionState) error {
	if format == "json" {
		return write(w, format, s)
	}

	msg := "-"
	if s.ErrorMessage != nil {
		msg = *s.ErrorMessage
	}

	_, err := fmt.Fprintf(w, "kind=%s status=%s error=%s\n", s.Kind, s.Status, msg)
	return err
}
