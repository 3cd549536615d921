package optim

import (
	"context"
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// Objective scores one parameter assignment. Lower is better. A returned
// error discards the candidate.
type Objective func(ctx context.Context, params map[string]float64) (float64, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64

	// Workers bounds concurrent evaluations. Zero uses GOMAXPROCS.
	Workers int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Candidates enumerates the full grid in lexical order of the ranges.
func (g *GridSearch) Candidates() []map[string]float64 {
	var out []map[string]float64
	g.enumerate(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) enumerate(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.enumerate(depth+1, newParams, out)
	}
}

// Search evaluates every candidate and returns the best one. Ties go to
// the candidate enumerated first.
func (g *GridSearch) Search(ctx context.Context, objective Objective) (map[string]float64, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, errors.Errorf("grid: %d names for %d ranges", len(g.paramNames), len(g.ranges))
	}

	candidates := g.Candidates()
	scores := make([]float64, len(candidates))
	errs := make([]error, len(candidates))

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				scores[idx], errs[idx] = objective(ctx, candidates[idx])
			}
		}()
	}

feed:
	for i := range candidates {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	var lastErr error
	for i, c := range candidates {
		if errs[i] != nil {
			lastErr = errs[i]
			continue
		}
		if scores[i] < best {
			best = scores[i]
			bestParams = c
		}
	}
	if bestParams == nil {
		if lastErr == nil {
			lastErr = errors.New("grid: empty search space")
		}
		return nil, 0, errors.Wrap(lastErr, "no candidate succeeded")
	}
	return bestParams, best, nil
}
