// Package importer loads star system catalogs into the store. It reads
// EDSM-style system dumps and journal/EDDN event streams, one JSON record
// per line, optionally gzip-compressed.
package importer

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"galnav/internal/graph"
	"galnav/internal/logger"
)

// DefaultBatchSize is the number of systems written per transaction.
const DefaultBatchSize = 1000

const maxLine = 1024 * 1024

// Sink receives parsed systems; *db.DB implements it.
type Sink interface {
	UpsertSystems(ctx context.Context, systems []graph.System) (int, error)
}

// Options tunes an import.
type Options struct {
	BatchSize int
	// Progress, if set, is called after every flushed batch.
	Progress func(Stats)
}

// Stats summarizes an import.
type Stats struct {
	Lines     int `json:"lines"`
	Systems   int `json:"systems"`   // records with address and coordinates
	Skipped   int `json:"skipped"`   // well-formed records missing address or coordinates
	Malformed int `json:"malformed"` // lines that are not JSON objects
	Changed   int `json:"changed"`   // rows inserted or updated by the sink
}

// Import streams r into sink. Malformed lines are counted and skipped; a
// sink error or context cancellation aborts the import.
func Import(ctx context.Context, r io.Reader, sink Sink, opts Options) (Stats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	var stats Stats

	src, err := maybeGunzip(r)
	if err != nil {
		return stats, err
	}

	batch := make([]graph.System, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := sink.UpsertSystems(ctx, batch)
		if err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		stats.Changed += n
		batch = batch[:0]
		if opts.Progress != nil {
			opts.Progress(stats)
		}
		return nil
	}

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		stats.Lines++
		line := trimLine(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		sys, ok, err := parseLine(line)
		if err != nil {
			stats.Malformed++
			continue
		}
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Systems++
		batch = append(batch, sys)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read input: %w", err)
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// ImportFile imports a local file; ".gz" files are detected by content.
func ImportFile(ctx context.Context, path string, sink Sink, opts Options) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()

	start := time.Now()
	stats, err := Import(ctx, f, sink, opts)
	if err != nil {
		return stats, fmt.Errorf("import %s: %w", path, err)
	}
	logger.Success("IMPORT", fmt.Sprintf("%s: %d systems (%d changed, %d skipped, %d malformed) in %v",
		path, stats.Systems, stats.Changed, stats.Skipped, stats.Malformed, time.Since(start).Round(time.Millisecond)))
	return stats, nil
}

// ImportURL streams a remote dump, such as the EDSM nightly export.
func ImportURL(ctx context.Context, client *http.Client, url string, sink Sink, opts Options) (Stats, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Stats{}, err
	}
	logger.Info("IMPORT", "Downloading "+url)
	resp, err := client.Do(req)
	if err != nil {
		return Stats{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Stats{}, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	stats, err := Import(ctx, resp.Body, sink, opts)
	if err != nil {
		return stats, fmt.Errorf("import %s: %w", url, err)
	}
	logger.Success("IMPORT", fmt.Sprintf("%s: %d systems (%d changed)", url, stats.Systems, stats.Changed))
	return stats, nil
}

func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	}
	return br, nil
}

// trimLine strips whitespace plus the array brackets and trailing commas
// that wrap one-record-per-line JSON dumps.
func trimLine(line []byte) []byte {
	line = bytes.TrimSpace(line)
	line = bytes.TrimPrefix(line, []byte("["))
	line = bytes.TrimSuffix(line, []byte("]"))
	line = bytes.TrimSpace(line)
	line = bytes.TrimSuffix(line, []byte(","))
	return bytes.TrimSpace(line)
}

type coords struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// record is the union of the fields used by the supported formats.
type record struct {
	// EDSM dump.
	ID64   int64   `json:"id64"`
	Name   string  `json:"name"`
	Coords *coords `json:"coords"`
	Date   string  `json:"date"`

	// Journal event (FSDJump, Location, CarrierJump, Scan...).
	SystemAddress int64     `json:"SystemAddress"`
	StarSystem    string    `json:"StarSystem"`
	StarPos       []float64 `json:"StarPos"`
	Timestamp     string    `json:"timestamp"`

	// EDDN envelope.
	Message *record `json:"message"`
}

// parseLine decodes one record. ok is false for well-formed records that
// carry no usable system.
func parseLine(line []byte) (graph.System, bool, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return graph.System{}, false, err
	}
	if rec.Message != nil {
		rec = *rec.Message
	}

	var sys graph.System
	switch {
	case rec.ID64 != 0 && rec.Coords != nil:
		c := rec.Coords
		if c.X == nil || c.Y == nil || c.Z == nil {
			return sys, false, nil
		}
		sys = graph.System{
			Addr:      rec.ID64,
			Name:      strings.TrimSpace(rec.Name),
			Pos:       graph.Position{X: *c.X, Y: *c.Y, Z: *c.Z},
			UpdatedAt: parseTime(rec.Date),
		}
	case rec.SystemAddress != 0 && len(rec.StarPos) == 3:
		sys = graph.System{
			Addr:      rec.SystemAddress,
			Name:      strings.TrimSpace(rec.StarSystem),
			Pos:       graph.Position{X: rec.StarPos[0], Y: rec.StarPos[1], Z: rec.StarPos[2]},
			UpdatedAt: parseTime(rec.Timestamp),
		}
	default:
		return sys, false, nil
	}
	if !sys.Pos.Valid() {
		return sys, false, nil
	}
	return sys, true, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
