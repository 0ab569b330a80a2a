// Package vectorize replaces every cell of an answer table with its embedding.
package vectorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chainguard-dev/clog"
	"github.com/mwiater/llmpanel/internal/embeddings"
	"github.com/mwiater/llmpanel/internal/table"
	"github.com/mwiater/llmpanel/internal/util"
	"golang.org/x/sync/errgroup"
)

// Options controls an embedding run.
type Options struct {
	Input       string
	Output      string
	Concurrency int
	FailFast    bool
}

// Result counts what happened to each cell.
type Result struct {
	Output   string
	Rows     int
	Columns  int
	Embedded int
	Empty    int
	Failed   int
}

// Run embeds every cell of opts.Input, column by column in header order, and
// writes a table with the same header whose cells hold "[v1, v2, ...]".
// Empty cells and cells whose embedding failed are left empty.
func Run(ctx context.Context, embedder embeddings.Embedder, opts Options) (*Result, error) {
	if embedder == nil {
		return nil, errors.New("vectorize: nil embedder")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	in, err := table.Read(opts.Input)
	if err != nil {
		return nil, err
	}

	out := table.New(in.Header)
	for range in.Rows {
		out.Append(nil)
	}

	var embedded, empty, failed atomic.Int64
	log := clog.FromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for col, name := range in.Header {
		log.With("column", name, "model", embedder.Model()).Info("Generating embeddings")
		for row := range in.Rows {
			text := in.Rows[row][col]
			if strings.TrimSpace(text) == "" {
				empty.Add(1)
				continue
			}
			g.Go(func() error {
				vector, err := embedder.Embed(gctx, util.SingleLine(text))
				if err != nil {
					failed.Add(1)
					log.With("column", name, "row", row+1).Warnf("embedding failed: %v", err)
					if opts.FailFast {
						return fmt.Errorf("column %s row %d: %w", name, row+1, err)
					}
					return nil
				}
				out.Rows[row][col] = embeddings.FormatVector(vector)
				embedded.Add(1)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := out.Write(opts.Output); err != nil {
		return nil, err
	}
	return &Result{
		Output:   opts.Output,
		Rows:     len(in.Rows),
		Columns:  len(in.Header),
		Embedded: int(embedded.Load()),
		Empty:    int(empty.Load()),
		Failed:   int(failed.Load()),
	}, nil
}
