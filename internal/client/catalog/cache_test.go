package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/client/backend"
	"github.com/credihogar/catalog/internal/models"
)

type mockTable struct {
	backend.Table
	QueryFunc func(ctx context.Context, q backend.Query) ([]models.Record, error)
}

func (m *mockTable) Query(ctx context.Context, q backend.Query) ([]models.Record, error) {
	return m.QueryFunc(ctx, q)
}

type mockBackend struct {
	backend.Backend
	tables map[string]backend.Table
}

func (m *mockBackend) Table(name string) backend.Table { return m.tables[name] }

func newBackend(products, categories *mockTable) *mockBackend {
	return &mockBackend{tables: map[string]backend.Table{
		backend.TableProducts:   products,
		backend.TableCategories: categories,
	}}
}

func rows() []models.Record {
	return []models.Record{
		{"id": "1", "name": "Cobija Polar", "price": 90000, "category": "Cobijas"},
		{"id": "2", "name": "Toalla Baño", "price": "35000", "category": "Toallas"},
		{"id": "3", "name": "Juego King", "description": "Sábana de algodón", "price": 120000, "category": "Sabanas"},
		{"id": "4", "name": "Toalla Mano", "price": 850, "category": "Toallas"},
	}
}

func ids(ps []models.Product) []string {
	out := []string{}
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestList_LazySyncAndFilter(t *testing.T) {
	var calls atomic.Int32
	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		calls.Add(1)
		return rows(), nil
	}}, nil), nil, nil)
	ctx := context.Background()
	assert.Nil(t, c.Snapshot())

	got, err := c.List(ctx, models.ProductFilter{Category: "Toallas"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "4"}, ids(got))

	got, err = c.List(ctx, models.ProductFilter{Search: "sábana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(got))

	got, err = c.List(ctx, models.ProductFilter{Category: "Cortinas"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Equal(t, int32(1), calls.Load(), "reads are served from the snapshot")
	assert.Len(t, c.Snapshot().Products, 4)

	c.Invalidate()
	_, err = c.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet(t *testing.T) {
	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		return rows(), nil
	}}, nil), nil, nil)

	p, err := c.Get(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "Juego King", p.Name)

	_, err = c.Get(context.Background(), "99")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSyncFailureKeepsPreviousSnapshot(t *testing.T) {
	fail := false
	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		if fail {
			return nil, apperr.Transport(errors.New("offline"))
		}
		return rows(), nil
	}}, nil), nil, nil)
	ctx := context.Background()

	_, err := c.Sync(ctx)
	require.NoError(t, err)
	before := c.Snapshot()

	fail = true
	c.Invalidate()
	got, err := c.List(ctx, models.ProductFilter{Category: "Cobijas"})
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.Equal(t, []string{"1"}, ids(got), "stale data is still served")
	assert.Same(t, before, c.Snapshot())

	fail = false
	_, err = c.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.NotSame(t, before, c.Snapshot())
	assert.Greater(t, c.Snapshot().Version, before.Version)
}

func TestSyncFailureWithoutSnapshot(t *testing.T) {
	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		return nil, apperr.Backend(500, "Error interno del servidor")
	}}, nil), nil, nil)

	got, err := c.List(context.Background(), models.ProductFilter{})
	assert.ErrorIs(t, err, apperr.ErrBackend)
	assert.Empty(t, got)

	_, err = c.Get(context.Background(), "1")
	assert.ErrorIs(t, err, apperr.ErrBackend)
}

func TestSync_BadRecord(t *testing.T) {
	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		return []models.Record{{"id": "1", "price": "gratis"}}, nil
	}}, nil), nil, nil)
	_, err := c.Sync(context.Background())
	assert.ErrorIs(t, err, apperr.ErrBackend)
	assert.Nil(t, c.Snapshot())
}

func TestConcurrentReadsShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		calls.Add(1)
		<-release
		return rows(), nil
	}}, nil), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.List(context.Background(), models.ProductFilter{})
			assert.NoError(t, err)
			assert.Len(t, got, 4)
		}()
	}
	// Give the readers time to pile onto the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestInvalidateDuringSyncForcesRefetch(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-release
		}
		return rows(), nil
	}}, nil), nil, nil)

	done := make(chan struct{})
	go func() {
		_, _ = c.Sync(context.Background())
		close(done)
	}()
	<-started
	c.Invalidate()
	close(release)
	<-done

	_, err := c.List(context.Background(), models.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOlderSyncLandingLastKeepsNewerSnapshot(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		if calls.Add(1) == 1 {
			started <- struct{}{}
			<-release
			return []models.Record{{"id": "old", "name": "Antes", "price": 1000, "category": "Cobijas"}}, nil
		}
		return []models.Record{{"id": "new", "name": "Después", "price": 2000, "category": "Cobijas"}}, nil
	}}, nil), nil, nil)

	type result struct {
		snap *Snapshot
		err  error
	}
	first := make(chan result, 1)
	go func() {
		snap, err := c.Sync(context.Background())
		first <- result{snap, err}
	}()
	<-started
	c.Invalidate()

	got, err := c.List(context.Background(), models.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(got))
	fresh := c.Snapshot()

	close(release)
	res := <-first
	require.NoError(t, res.err)
	assert.Same(t, fresh, res.snap)
	assert.Same(t, fresh, c.Snapshot())

	got, err = c.List(context.Background(), models.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(got))
	assert.Equal(t, int32(2), calls.Load())
}

func TestEvents(t *testing.T) {
	bus := EventBus.New()
	var invalidated int
	var synced []*Snapshot
	require.NoError(t, bus.Subscribe(TopicInvalidated, func() { invalidated++ }))
	require.NoError(t, bus.Subscribe(TopicSynced, func(s *Snapshot) { synced = append(synced, s) }))

	c := New(newBackend(&mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		return rows(), nil
	}}, nil), bus, nil)

	_, err := c.Sync(context.Background())
	require.NoError(t, err)
	c.Invalidate()

	assert.Equal(t, 1, invalidated)
	require.Len(t, synced, 1)
	assert.Len(t, synced[0].Products, 4)
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	cats := &mockTable{QueryFunc: func(context.Context, backend.Query) ([]models.Record, error) {
		return []models.Record{{"id": "a", "name": "Cobijas"}, {"id": "b", "name": "Toallas"}}, nil
	}}
	c := New(newBackend(nil, cats), nil, nil)
	assert.Equal(t, []string{"Cobijas", "Toallas"}, c.Categories(ctx))

	cats.QueryFunc = func(context.Context, backend.Query) ([]models.Record, error) { return nil, nil }
	assert.Equal(t, models.DefaultCategories, c.Categories(ctx))

	cats.QueryFunc = func(context.Context, backend.Query) ([]models.Record, error) {
		return nil, apperr.Transport(errors.New("offline"))
	}
	got := c.Categories(ctx)
	assert.Equal(t, models.DefaultCategories, got)
	got[0] = "mutated"
	assert.NotEqual(t, "mutated", models.DefaultCategories[0])
}
