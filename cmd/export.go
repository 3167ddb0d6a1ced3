package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/elasticsearch"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/export"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/logger"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/metrics"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/query"
	"github.com/jonesrussell/north-cloud/ocds-portal/internal/service"
	"github.com/spf13/cobra"
)

func exportCommand() *cobra.Command {
	var (
		format  string
		output  string
		filters map[string]string
	)

	cmd := &cobra.Command{
		Use:       "export <procesos|contratos|productos>",
		Short:     "Write a buscador export to a file",
		Example:   `  ocds-portal export contratos --formato xlsx -f categoria=goods -f moneda=HNL`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(export.KindProcesses), string(export.KindContracts), string(export.KindItems)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := export.ParseKind(args[0])
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return runExport(cmd, kind, f, output, query.Params(filters))
		},
	}

	cmd.Flags().StringVar(&format, "formato", string(export.FormatCSV), "output format: csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default is the generated export name in the current directory)")
	cmd.Flags().StringToStringVarP(&filters, "filtro", "f", nil, "buscador filter as key=value, repeatable")

	return cmd
}

func runExport(cmd *cobra.Command, kind export.Kind, format export.Format, output string, params query.Params) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	m := metrics.New()
	es, err := elasticsearch.NewClient(cfg.Elasticsearch, log, elasticsearch.WithMetrics(m))
	if err != nil {
		return err
	}
	if err = es.Connect(cmd.Context()); err != nil {
		return err
	}

	svc := service.NewSearchService(es, es, service.SettingsFromConfig(cfg), service.ExportSettingsFromConfig(cfg), m)
	if output == "" {
		output = svc.FileName(kind, format, time.Now())
	}

	file, err := os.Create(filepath.Clean(output))
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close export file: %w", closeErr))
		}
	}()

	buf := bufio.NewWriter(file)
	w, err := export.New(format, buf)
	if err != nil {
		return err
	}

	start := time.Now()
	ctx := logger.WithContext(cmd.Context(), log)
	rows, err := svc.Export(ctx, kind, params, w)
	if err != nil {
		_ = w.Abort()
		return fmt.Errorf("export %s: %w", kind, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("finish export: %w", err)
	}
	if err = buf.Flush(); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}

	log.Info("Export written",
		logger.String("file", output),
		logger.String("kind", string(kind)),
		logger.String("format", string(format)),
		logger.Int("rows", rows),
		logger.Duration("duration", time.Since(start)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", output, rows)
	return nil
}
