package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/app"
	"github.com/credihogar/catalog/internal/client/mutation"
	"github.com/credihogar/catalog/internal/models"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func writeCatalog(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for rel, data := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	return root
}

func TestScan(t *testing.T) {
	img := pngBytes(t)
	root := writeCatalog(t, map[string][]byte{
		"Toallas/toalla azul.png":  img,
		"Toallas/notas.txt":        []byte("x"),
		"Cojines/cojin.JPG":        img,
		"Cojines/sub/ignored.png":  img,
		"suelto.png":               img,
		"Sabanas/sabana-king.webp": img,
	})
	manifest := map[string]manifestRow{
		"Toallas/toalla azul.png": {Name: "Toalla Azul", Description: "Algodón", Price: "35000"},
		"cojin.JPG":               {Description: "Bordado"},
	}

	jobs, err := scan(root, manifest)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "Cojines", jobs[0].Category)
	assert.Equal(t, "cojin", jobs[0].Name, "empty manifest name keeps the file stem")
	assert.Equal(t, "Bordado", jobs[0].Desc)
	assert.Equal(t, 0, jobs[0].Price)

	assert.Equal(t, "Sabanas", jobs[1].Category)
	assert.Equal(t, "sabana-king", jobs[1].Name)

	assert.Equal(t, "Toalla Azul", jobs[2].Name)
	assert.Equal(t, "35000", jobs[2].Price)
}

func TestScan_MissingDir(t *testing.T) {
	_, err := scan(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"file,name,description,price\n"+
			"Toallas/a.png,Toalla A,Suave,35000\n"+
			"b.jpg,,,\n"+
			",ignored,,\n",
	), 0o644))

	rows, err := loadManifest(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, manifestRow{File: "Toallas/a.png", Name: "Toalla A", Description: "Suave", Price: "35000"}, rows["Toallas/a.png"])
	assert.Contains(t, rows, "b.jpg")

	rows, err = loadManifest("")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = loadManifest(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

// fakeCreator records calls and tracks peak concurrency.
type fakeCreator struct {
	mu      sync.Mutex
	inputs  []mutation.Input
	active  atomic.Int32
	peak    atomic.Int32
	failFor string
}

func (f *fakeCreator) Create(_ context.Context, in mutation.Input) (models.Product, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if in.Name == f.failFor {
		return models.Product{}, apperr.Upload("El archivo no es una imagen válida")
	}
	return models.Product{ID: "id-" + in.Name}, nil
}

func TestImportAll_PoolAndResults(t *testing.T) {
	img := pngBytes(t)
	files := map[string][]byte{}
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		files["Toallas/"+n+".png"] = img
	}
	jobs, err := scan(writeCatalog(t, files), nil)
	require.NoError(t, err)

	c := &fakeCreator{failFor: "c"}
	results, err := importAll(context.Background(), c, jobs, 2, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, results, 6)

	assert.LessOrEqual(t, c.peak.Load(), int32(2))
	for i, r := range results {
		assert.Equal(t, jobs[i].Path, r.Job.Path, "results keep job order")
	}
	assert.Equal(t, "id-a", results[0].ProductID)
	assert.ErrorIs(t, results[2].Err, apperr.ErrUpload)

	for _, in := range c.inputs {
		require.NotNil(t, in.Image)
		assert.Equal(t, in.Name+".png", in.Image.Name)
		assert.Equal(t, int64(len(img)), in.Image.Size)
	}

	created, err := summarize(results)
	assert.Equal(t, 5, created)
	assert.ErrorContains(t, err, "c.png")
}

func TestImportAll_Cancelled(t *testing.T) {
	jobs, err := scan(writeCatalog(t, map[string][]byte{"Toallas/a.png": pngBytes(t)}), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &fakeCreator{}
	results, err := importAll(ctx, c, jobs, 1, zap.NewNop())
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Empty(t, c.inputs)
}

func TestImport_EndToEndLocal(t *testing.T) {
	ctx := context.Background()
	img := pngBytes(t)
	root := writeCatalog(t, map[string][]byte{
		"Toallas/toalla.png": img,
		"Cojines/cojin.png":  img,
	})

	a, err := app.New(app.Options{DataDir: t.TempDir(), Backend: app.BackendLocal})
	require.NoError(t, err)
	defer a.Close()
	_, err = a.Sessions.SignIn(ctx, "", "")
	require.NoError(t, err)

	jobs, err := scan(root, nil)
	require.NoError(t, err)
	results, err := importAll(ctx, a.Mutations, jobs, 2, zap.NewNop())
	require.NoError(t, err)
	created, err := summarize(results)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	ps, err := a.Catalog.List(ctx, models.ProductFilter{OrderBy: "name", Ascending: true})
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "cojin", ps[0].Name)
	assert.Equal(t, "Cojines", ps[0].Category)
	assert.Equal(t, 0.0, ps[0].Price)
	assert.Contains(t, ps[0].ImageURL, "data:image/png;base64,")
}
