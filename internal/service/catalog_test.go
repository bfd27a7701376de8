package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/credihogar/catalog/internal/apperr"
	"github.com/credihogar/catalog/internal/models"
)

type mockProductRepo struct {
	ListFunc   func(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	GetFunc    func(ctx context.Context, id string) (models.Product, error)
	InsertFunc func(ctx context.Context, p models.Product) error
	UpdateFunc func(ctx context.Context, id string, patch models.ProductPatch, updatedAt time.Time) error
	DeleteFunc func(ctx context.Context, id string) error
}

func (m *mockProductRepo) List(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	return m.ListFunc(ctx, f)
}
func (m *mockProductRepo) Get(ctx context.Context, id string) (models.Product, error) {
	return m.GetFunc(ctx, id)
}
func (m *mockProductRepo) Insert(ctx context.Context, p models.Product) error {
	return m.InsertFunc(ctx, p)
}
func (m *mockProductRepo) Update(ctx context.Context, id string, patch models.ProductPatch, updatedAt time.Time) error {
	return m.UpdateFunc(ctx, id, patch, updatedAt)
}
func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

type mockImages struct {
	removed   []string
	removeErr error
}

func (m *mockImages) Locate(url string) (string, bool) {
	p, ok := strings.CutPrefix(url, "http://localhost:8080/")
	return p, ok
}

func (m *mockImages) Remove(_ context.Context, path string) error {
	m.removed = append(m.removed, path)
	return m.removeErr
}

var (
	owner = &models.User{ID: "owner"}
	other = &models.User{ID: "other"}
	admin = &models.User{ID: "boss", IsAdmin: true}
)

func existing() models.Product {
	return models.Product{
		ID:       "p1",
		Name:     "Sábana King",
		Price:    120000,
		Category: "Sabanas",
		ImageURL: "http://localhost:8080/uploads/products/p1.jpg",
		OwnerID:  "owner",
	}
}

func repoWith(p models.Product) *mockProductRepo {
	return &mockProductRepo{GetFunc: func(_ context.Context, id string) (models.Product, error) {
		if id != p.ID {
			return models.Product{}, apperr.NotFound("Producto no encontrado")
		}
		return p, nil
	}}
}

func TestCreate(t *testing.T) {
	var inserted models.Product
	repo := &mockProductRepo{InsertFunc: func(_ context.Context, p models.Product) error {
		inserted = p
		return nil
	}}
	svc := NewCatalogService(repo, nil, nil, zap.NewNop())

	p, err := svc.Create(context.Background(), owner, models.Record{
		"name": " Sábana King ", "price": "120000", "category": "Sabanas",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" || p.OwnerID != "owner" || p.Name != "Sábana King" || p.Price != 120000 {
		t.Errorf("unexpected product: %+v", p)
	}
	if inserted.ID != p.ID {
		t.Errorf("inserted %q, returned %q", inserted.ID, p.ID)
	}
}

func TestCreate_Rejections(t *testing.T) {
	svc := NewCatalogService(&mockProductRepo{}, nil, nil, zap.NewNop())

	if _, err := svc.Create(context.Background(), nil, models.Record{"name": "x", "price": 1}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("anonymous create = %v", err)
	}
	if _, err := svc.Create(context.Background(), owner, models.Record{"name": "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("missing price = %v", err)
	}
	if _, err := svc.Create(context.Background(), owner, models.Record{"name": "x", "price": "abc"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad price = %v", err)
	}
}

func TestUpdate_OwnerAndAdmin(t *testing.T) {
	for _, who := range []*models.User{owner, admin} {
		repo := repoWith(existing())
		var gotPatch models.ProductPatch
		repo.UpdateFunc = func(_ context.Context, _ string, patch models.ProductPatch, _ time.Time) error {
			gotPatch = patch
			return nil
		}
		svc := NewCatalogService(repo, nil, nil, zap.NewNop())

		p, err := svc.Update(context.Background(), who, "p1", models.Record{"price": 99000})
		if err != nil {
			t.Fatalf("Update as %s: %v", who.ID, err)
		}
		if gotPatch.Price == nil || *gotPatch.Price != 99000 || p.Price != 99000 || p.Name != "Sábana King" {
			t.Errorf("unexpected update as %s: %+v", who.ID, p)
		}
	}
}

func TestUpdate_ForbiddenLeavesRecord(t *testing.T) {
	repo := repoWith(existing())
	repo.UpdateFunc = func(context.Context, string, models.ProductPatch, time.Time) error {
		t.Fatal("repository must not be written for a non-owner")
		return nil
	}
	svc := NewCatalogService(repo, nil, nil, zap.NewNop())

	_, err := svc.Update(context.Background(), other, "p1", models.Record{"price": 1})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpdate_EmptyPatchAndMissing(t *testing.T) {
	svc := NewCatalogService(repoWith(existing()), nil, nil, zap.NewNop())

	if _, err := svc.Update(context.Background(), owner, "p1", models.Record{"name": "  "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty patch = %v", err)
	}
	if _, err := svc.Update(context.Background(), owner, "ghost", models.Record{"name": "x"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing product = %v", err)
	}
}

func TestDelete_RemovesImage(t *testing.T) {
	repo := repoWith(existing())
	deleted := false
	repo.DeleteFunc = func(context.Context, string) error {
		deleted = true
		return nil
	}
	images := &mockImages{}
	svc := NewCatalogService(repo, nil, images, zap.NewNop())

	if err := svc.Delete(context.Background(), owner, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Error("expected repository delete")
	}
	if len(images.removed) != 1 || images.removed[0] != "uploads/products/p1.jpg" {
		t.Errorf("removed = %v", images.removed)
	}
}

func TestDelete_ImageFailureOnlyWarns(t *testing.T) {
	repo := repoWith(existing())
	repo.DeleteFunc = func(context.Context, string) error { return nil }

	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(&buf), zapcore.WarnLevel)
	svc := NewCatalogService(repo, nil, &mockImages{removeErr: errors.New("disk gone")}, zap.New(core))

	if err := svc.Delete(context.Background(), admin, "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !strings.Contains(buf.String(), "failed to remove product image") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}

func TestDelete_NotFoundAndForbidden(t *testing.T) {
	svc := NewCatalogService(repoWith(existing()), nil, nil, zap.NewNop())

	if err := svc.Delete(context.Background(), owner, "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("delete missing = %v", err)
	}
	if err := svc.Delete(context.Background(), other, "p1"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("delete by other = %v", err)
	}
	if err := svc.Delete(context.Background(), nil, "p1"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("delete anonymous = %v", err)
	}
}
