package graphfuse

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/graphfuse"
)

var (
	extractCmd = &cobra.Command{
		Use:   "extract-relations",
		Short: "Extract relations among the entities of every chunk",
		RunE: stage(false, func(ctx context.Context, p *graphfuse.Pipeline) (any, error) {
			return p.ExtractRelations(ctx)
		}),
	}

	linkCmd = &cobra.Command{
		Use:   "link-references",
		Short: "Link body entities to the entities of the cited references",
		RunE: stage(false, func(ctx context.Context, p *graphfuse.Pipeline) (any, error) {
			return p.LinkReferences(ctx)
		}),
	}

	fuseRelationsCmd = &cobra.Command{
		Use:   "fuse-relations",
		Short: "Union every relation file and remove duplicates",
		RunE: stage(false, func(ctx context.Context, p *graphfuse.Pipeline) (any, error) {
			return p.FuseRelations(ctx)
		}),
	}

	fuseEntitiesCmd = &cobra.Command{
		Use:   "fuse-entities",
		Short: "Fuse entity records that share an identity",
		RunE: stage(false, func(ctx context.Context, p *graphfuse.Pipeline) (any, error) {
			return p.FuseEntities(ctx)
		}),
	}

	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Write the fused entities and relations to the graph store",
		RunE: stage(true, func(ctx context.Context, p *graphfuse.Pipeline) (any, error) {
			return p.Import(ctx)
		}),
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order",
		Long: `Run extract-relations, link-references, fuse-relations, fuse-entities and
import in order, stopping at the first stage that fails. The run report is
written to pipeline.report_path, or to stdout when no path is configured.`,
		RunE: runAll,
	}
)

func init() {
	rootCmd.AddCommand(extractCmd, linkCmd, fuseRelationsCmd, fuseEntitiesCmd, importCmd, runCmd)
}

type stageFunc func(ctx context.Context, p *graphfuse.Pipeline) (any, error)

// stage adapts a pipeline stage to a command that prints its result as YAML.
func stage(withGraph bool, fn stageFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		rt, err := newApp(withGraph)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rt.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := fn(ctx, rt.pipeline)
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), result)
	}
}

func runAll(cmd *cobra.Command, args []string) (err error) {
	rt, err := newApp(true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rt.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, runErr := rt.pipeline.Run(ctx)
	report.Usage = rt.usage()

	if path := rt.cfg.Pipeline.ReportPath; path != "" {
		if err := report.SaveYAML(path); err != nil {
			rt.logger.Error("Failed to save run report", "path", path, "error", err)
		} else {
			rt.logger.Info("Run report persisted", "path", path)
		}
	} else if err := report.WriteYAML(cmd.OutOrStdout()); err != nil {
		rt.logger.Error("Failed to print run report", "error", err)
	}
	return runErr
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return enc.Close()
}
