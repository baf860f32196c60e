package series

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/spelltrack/pkg/persist"
)

// IndexBasename names the index file written next to the charts.
const IndexBasename = "index"

const jsonExtension = ".json"

// ErrFileCollision is returned when two charts map to the same file name,
// e.g. groups a-b/c/x and a/b-c/x.
var ErrFileCollision = errors.New("charts share a file name")

// Index lists the chart files of one output directory.
type Index struct {
	Version string       `json:"version"`
	Charts  []IndexEntry `json:"charts"`
}

// IndexEntry describes one chart file.
type IndexEntry struct {
	File     string `json:"file"`
	Language string `json:"language"`
	Speller  string `json:"speller"`
	Kind     string `json:"kind"`
	Chart    string `json:"chart"`
}

// Writer stores charts as JSON files in Dir.
type Writer struct {
	Dir string
	// Validator, when set, rejects documents that do not match the schema
	// before anything is written.
	Validator *Validator
	// Workers bounds concurrent writes. Zero means runtime.NumCPU().
	Workers int
	Logger  *slog.Logger
}

// Write validates and writes every chart, then the index. Each file is
// replaced atomically; the index is written last so it never names a file
// that is missing.
func (w *Writer) Write(ctx context.Context, version string, charts []*Chart) (*Index, error) {
	index := &Index{Version: version, Charts: make([]IndexEntry, 0, len(charts))}
	owners := make(map[string]*Chart, len(charts))

	for _, chart := range charts {
		name := chart.Basename()
		if prev, taken := owners[name]; taken {
			return nil, fmt.Errorf("%w: %s%s for %s and %s", ErrFileCollision, name, jsonExtension, prev.group(), chart.group())
		}

		owners[name] = chart

		index.Charts = append(index.Charts, IndexEntry{
			File:     chart.Basename() + jsonExtension,
			Language: chart.Language,
			Speller:  chart.Speller,
			Kind:     chart.Kind,
			Chart:    chart.Chart,
		})
	}

	if w.Validator != nil {
		for _, chart := range charts {
			err := w.Validator.Chart(chart)
			if err != nil {
				return nil, fmt.Errorf("chart %s: %w", chart.Basename(), err)
			}
		}

		err := w.Validator.Index(index)
		if err != nil {
			return nil, fmt.Errorf("chart index: %w", err)
		}
	}

	codec := persist.NewJSONCodec()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers())

	for _, chart := range charts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			err := persist.SaveState(w.Dir, chart.Basename(), codec, chart)
			if err != nil {
				return fmt.Errorf("write chart %s: %w", chart.Basename(), err)
			}

			w.logger().Debug("chart written", slog.String("file", chart.Basename()+jsonExtension))

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	err = persist.SaveState(w.Dir, IndexBasename, codec, index)
	if err != nil {
		return nil, fmt.Errorf("write chart index: %w", err)
	}

	w.logger().Info("series written", slog.String("dir", w.Dir), slog.Int("charts", len(charts)))

	return index, nil
}

func (w *Writer) workers() int {
	if w.Workers <= 0 {
		return runtime.NumCPU()
	}

	return w.Workers
}

func (w *Writer) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}

	return w.Logger
}
