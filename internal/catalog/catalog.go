// Package catalog fetches plugin catalog details in bulk. The details come
// from an external service behind Fetcher; this package only fans the ids
// out over a fixed pool of workers and puts the answers back in order.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the pool size used when FetchAll is given none.
const DefaultWorkers = 8

// Details is one catalog entry. ID is always set; the rest is whatever the
// service returned, empty when the fetch failed.
type Details struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Fetcher looks up one id. A nil map with a nil error means "not found".
type Fetcher interface {
	Fetch(ctx context.Context, id string) (map[string]any, error)
}

// FetchAll fetches every id with a pool of workers draining one shared id
// queue into a result queue. Failed or missing ids still get an entry with
// only ID set. The result has the same order as ids.
func FetchAll(ctx context.Context, f Fetcher, ids []string, workers int, log hclog.Logger) ([]Details, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	if workers < 1 {
		workers = DefaultWorkers
	}

	queue := make(chan string, len(ids))
	for _, id := range ids {
		queue <- id
	}
	close(queue)
	done := make(chan Details, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for id := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				data, err := f.Fetch(gctx, id)
				if err != nil {
					log.Error("failed to fetch catalog details", "id", id, "error", err)
					continue
				}
				if len(data) > 0 {
					done <- Details{ID: id, Data: data}
				}
			}
			return nil
		})
	}
	err := g.Wait()
	close(done)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]map[string]any, len(ids))
	for d := range done {
		byID[d.ID] = d.Data
	}
	out := make([]Details, 0, len(ids))
	for _, id := range ids {
		out = append(out, Details{ID: id, Data: byID[id]})
	}
	return out, nil
}

// ExecFetcher runs Command with the id appended and reads a JSON envelope
// {"success": bool, "data": {...}} from its stdout.
type ExecFetcher struct {
	Command []string
}

// ErrFetchFailed is returned when the command reports success=false.
var ErrFetchFailed = errors.New("catalog fetch failed")

type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
}

// Fetch implements Fetcher.
func (e ExecFetcher) Fetch(ctx context.Context, id string) (map[string]any, error) {
	if len(e.Command) == 0 {
		return nil, errors.New("catalog: empty details command")
	}
	args := append(append([]string{}, e.Command[1:]...), id)
	out, err := exec.CommandContext(ctx, e.Command[0], args...).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s for %q: %w", e.Command[0], id, err)
	}
	var env envelope
	if err := json.Unmarshal(out, &env); err != nil {
		return nil, fmt.Errorf("parse details for %q: %w", id, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %q", ErrFetchFailed, id)
	}
	return env.Data, nil
}
