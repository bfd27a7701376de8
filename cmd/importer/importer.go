package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/client/mutation"
	"github.com/credihogar/catalog/internal/imaging"
	"github.com/credihogar/catalog/internal/models"
)

// manifestRow overrides the generated fields of one image. File is either
// the image's base name or its path relative to the catalog root.
type manifestRow struct {
	File        string `csv:"file"`
	Name        string `csv:"name"`
	Description string `csv:"description"`
	Price       string `csv:"price"`
}

// job is one product to create.
type job struct {
	Path     string
	Category string
	Name     string
	Desc     string
	Price    any
}

// result is the outcome of a job.
type result struct {
	Job       job
	ProductID string
	Err       error
}

// creator is the slice of the mutation coordinator the importer needs.
type creator interface {
	Create(ctx context.Context, in mutation.Input) (models.Product, error)
}

// loadManifest reads the CSV at path keyed by the file column. An empty
// path yields an empty manifest.
func loadManifest(path string) (map[string]manifestRow, error) {
	out := map[string]manifestRow{}
	if path == "" {
		return out, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var rows []manifestRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for _, r := range rows {
		key := filepath.ToSlash(strings.TrimSpace(r.File))
		if key != "" {
			out[key] = r
		}
	}
	return out, nil
}

// scan walks root/<category>/<image> and returns one job per image, sorted
// by path. Files with other extensions are skipped.
func scan(root string, manifest map[string]manifestRow) ([]job, error) {
	cats, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read catalog dir: %w", err)
	}

	var jobs []job
	for _, cat := range cats {
		if !cat.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(root, cat.Name()))
		if err != nil {
			return nil, fmt.Errorf("read category %s: %w", cat.Name(), err)
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(imaging.AllowedExtensions, imaging.Ext(e.Name())) {
				continue
			}
			j := job{
				Path:     filepath.Join(root, cat.Name(), e.Name()),
				Category: cat.Name(),
				Name:     strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())),
				Price:    0,
			}
			row, ok := manifest[cat.Name()+"/"+e.Name()]
			if !ok {
				row, ok = manifest[e.Name()]
			}
			if ok {
				if row.Name != "" {
					j.Name = row.Name
				}
				j.Desc = row.Description
				if row.Price != "" {
					j.Price = row.Price
				}
			}
			jobs = append(jobs, j)
		}
	}
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].Path < jobs[b].Path })
	return jobs, nil
}

// importAll creates every job through c on a pool of workers and returns the
// results in job order.
func importAll(ctx context.Context, c creator, jobs []job, workers int, log *zap.Logger) ([]result, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]result, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		i, j := i, j
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = importOne(ctx, c, j)
			if results[i].Err != nil {
				log.Warn("import failed", zap.String("file", j.Path), zap.Error(results[i].Err))
			} else {
				log.Info("product created", zap.String("file", j.Path), zap.String("id", results[i].ProductID))
			}
		})
		if err != nil {
			wg.Done()
			results[i] = result{Job: j, Err: fmt.Errorf("submit: %w", err)}
		}
	}
	wg.Wait()
	return results, nil
}

func importOne(ctx context.Context, c creator, j job) result {
	if err := ctx.Err(); err != nil {
		return result{Job: j, Err: err}
	}
	f, err := os.Open(j.Path)
	if err != nil {
		return result{Job: j, Err: err}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return result{Job: j, Err: err}
	}

	p, err := c.Create(ctx, mutation.Input{
		Name:        j.Name,
		Description: j.Desc,
		Price:       j.Price,
		Category:    j.Category,
		Image:       &backend.File{Name: filepath.Base(j.Path), Size: info.Size(), Body: f},
	})
	if err != nil {
		return result{Job: j, Err: err}
	}
	return result{Job: j, ProductID: p.ID}
}

// summarize counts failures and joins their errors.
func summarize(results []result) (created int, err error) {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Job.Path, r.Err))
			continue
		}
		created++
	}
	return created, errors.Join(errs...)
}
