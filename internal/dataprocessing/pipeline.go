package dataprocessing

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pharmapulse/pkg/contracts/domain"
)

// SourceFile is a spreadsheet queued for ingestion.
type SourceFile struct {
	Path string
	Team string
}

// Observer receives ingestion telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	FileParsed(ctx context.Context, path string, dur time.Duration, err error)
	RunCompleted(ctx context.Context, manifest domain.IngestManifest, dur time.Duration)
}

type noopObserver struct{}

func (noopObserver) FileParsed(context.Context, string, time.Duration, error) {}
func (noopObserver) RunCompleted(context.Context, domain.IngestManifest, time.Duration) {}

// Pipeline parses source files concurrently and assembles them in input
// order, so the result does not depend on scheduling.
type Pipeline struct {
	parser    *Parser
	assembler *Assembler
	observer  Observer
	workers   int
	logger    *slog.Logger
}

// NewPipeline creates a pipeline. workers bounds concurrent parsing; values
// below one mean one.
func NewPipeline(parser *Parser, assembler *Assembler, observer Observer, workers int, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		parser:    parser,
		assembler: assembler,
		observer:  observer,
		workers:   workers,
		logger:    logger,
	}
}

// Run ingests files and returns the assembled fact table with its manifest.
// Cancelling ctx stops scheduling further files.
func (p *Pipeline) Run(ctx context.Context, files []SourceFile) (*domain.FactTable, domain.IngestManifest, error) {
	start := time.Now()
	batches := make([]Batch, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fctx, span := otel.Tracer("pharmapulse/dataprocessing").Start(gctx, "ingest.file",
				trace.WithAttributes(attribute.String("file.path", f.Path), attribute.String("team", f.Team)))
			t0 := time.Now()
			res, err := p.parser.ParseFile(fctx, f.Path)
			p.observer.FileParsed(fctx, f.Path, time.Since(t0), err)
			span.End()
			batches[i] = Batch{
				Path:   f.Path,
				Source: SourceName(f.Path),
				Team:   f.Team,
				Result: res,
				Err:    err,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.IngestManifest{}, err
	}

	table, manifest, err := p.assembler.Assemble(ctx, batches)
	manifest.StartedAt = start
	p.observer.RunCompleted(ctx, manifest, time.Since(start))
	return table, manifest, err
}
