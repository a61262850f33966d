package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/drishti/internal/bootstrap"
	"github.com/bryanwahyu/drishti/internal/infra/storage"
)

func newIndexDocsCommand(ctx *commandContext) *cobra.Command {
	var docsDir, source string
	var upload bool

	cmd := &cobra.Command{
		Use:   "index-docs",
		Short: "Split, embed and index the rules corpus into the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if docsDir != "" {
				cfg.Knowledge.DocsDir = docsDir
			}
			if source != "" {
				cfg.Knowledge.Source = source
			}
			if err := cfg.ValidateSearch(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			comps, err := bootstrap.Build(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer comps.Close()

			out := cmd.OutOrStdout()
			if upload {
				if comps.Bucket == nil {
					return errors.New("--upload needs the minio section")
				}
				files, err := storage.NewDir(cfg.Knowledge.DocsDir).Files()
				if err != nil {
					return err
				}
				for _, f := range files {
					key, err := comps.Bucket.Upload(cmd.Context(), f)
					if err != nil {
						return fmt.Errorf("upload %s: %w", f, err)
					}
					fmt.Fprintf(out, "uploaded %s -> %s\n", f, key)
				}
				cfg.Knowledge.Source = "minio"
			}

			ing, err := bootstrap.Ingestor(cfg, comps)
			if err != nil {
				return err
			}
			stats, err := ing.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(out, renderTable(
				[]string{"Source", "Documents", "Chunks", "Duration"},
				[][]string{{cfg.Knowledge.Source, fmt.Sprint(stats.Documents), fmt.Sprint(stats.Chunks), stats.Duration.Round(time.Millisecond).String()}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&docsDir, "docs", "", "Local documents folder (overrides knowledge.docsDir)")
	cmd.Flags().StringVar(&source, "source", "", "Document source: dir or minio (overrides knowledge.source)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the local folder to the minio bucket before indexing")
	return cmd
}
