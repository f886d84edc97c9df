package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/mystique/backend/internal/domain/catalog"
	"github.com/mystique/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockProductRepository is a mock implementation of catalog.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]catalog.Product, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindAll(ctx context.Context, filter shared.Filter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockProductRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *catalog.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductRepository) DecrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return m.Called(ctx, id, qty).Error(0)
}

func (m *MockProductRepository) IncrementStock(ctx context.Context, id uuid.UUID, qty int) error {
	return m.Called(ctx, id, qty).Error(0)
}

// MockImageUploader is a mock implementation of ImageUploader
type MockImageUploader struct {
	mock.Mock
}

func (m *MockImageUploader) Upload(ctx context.Context, prefix string, files []ImageFile) (map[int]string, error) {
	args := m.Called(ctx, prefix, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int]string), args.Error(1)
}

func (m *MockImageUploader) Remove(ctx context.Context, urls []string) {
	m.Called(ctx, urls)
}

type recordingPublisher struct {
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	for _, e := range events {
		p.types = append(p.types, e.EventType())
	}
	return nil
}

func newTestService(t *testing.T) (*ProductService, *MockProductRepository, *MockImageUploader, *recordingPublisher) {
	repo := new(MockProductRepository)
	uploader := new(MockImageUploader)
	pub := &recordingPublisher{}
	svc := NewProductService(repo, uploader, zaptest.NewLogger(t))
	svc.SetEventPublisher(pub)
	return svc, repo, uploader, pub
}

func createRequest() CreateProductRequest {
	return CreateProductRequest{
		Name:        "Linen Shirt",
		Description: "Relaxed fit linen shirt",
		Price:       decimal.RequireFromString("59.90"),
		Category:    "Clothing",
		Subcategory: "Tops",
		Sizes:       []string{"S", "M"},
		Stock:       12,
		NewArrival:  true,
	}
}

func existingProduct(t *testing.T) *catalog.Product {
	p, err := catalog.NewProduct(catalog.NewProductInput{
		Name:        "Wool Coat",
		Description: "Double breasted",
		Price:       decimal.RequireFromString("249.00"),
		Images:      []string{"https://cdn.test/old-1.jpg", "https://cdn.test/old-2.jpg"},
		Category:    catalog.CategoryClothing,
		Subcategory: catalog.SubcategoryOuterwear,
		Sizes:       []string{"M", "L"},
		Stock:       3,
	})
	require.NoError(t, err)
	p.ClearDomainEvents()
	return p
}

func images(slots ...int) []ImageFile {
	out := make([]ImageFile, len(slots))
	for i, s := range slots {
		out[i] = ImageFile{Slot: s, Filename: "img.jpg", ContentType: "image/jpeg", Size: 10}
	}
	return out
}

func TestProductService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads images and saves the product", func(t *testing.T) {
		svc, repo, uploader, pub := newTestService(t)
		files := images(2, 1)

		uploader.On("Upload", ctx, mock.MatchedBy(func(prefix string) bool {
			return len(prefix) > len("products/")
		}), files).Return(map[int]string{1: "https://cdn.test/1.jpg", 2: "https://cdn.test/2.jpg"}, nil)
		repo.On("Save", ctx, mock.MatchedBy(func(p *catalog.Product) bool {
			return len(p.Images) == 2 && p.Images[0] == "https://cdn.test/1.jpg"
		})).Return(nil)

		resp, err := svc.Create(ctx, createRequest(), files)
		require.NoError(t, err)
		assert.Equal(t, "Linen Shirt", resp.Name)
		assert.Equal(t, []string{"https://cdn.test/1.jpg", "https://cdn.test/2.jpg"}, resp.Image)
		assert.Equal(t, "Tops", resp.Subcategory)
		assert.True(t, resp.NewArrival)
		assert.Equal(t, []string{catalog.EventTypeProductCreated}, pub.types)
		uploader.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid fields before uploading", func(t *testing.T) {
		svc, repo, uploader, _ := newTestService(t)
		req := createRequest()
		req.Category = "Shoes"

		_, err := svc.Create(ctx, req, images(1))
		assert.ErrorIs(t, err, catalog.ErrInvalidCategory)
		uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("requires at least one image", func(t *testing.T) {
		svc, _, uploader, _ := newTestService(t)
		_, err := svc.Create(ctx, createRequest(), nil)
		assert.ErrorIs(t, err, errImageRequired)
		uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects duplicate slots", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		_, err := svc.Create(ctx, createRequest(), images(1, 1))
		assert.ErrorIs(t, err, errDuplicateImageKey)
	})

	t.Run("upload failure saves nothing", func(t *testing.T) {
		svc, repo, uploader, pub := newTestService(t)
		uploader.On("Upload", ctx, mock.Anything, mock.Anything).Return(nil, errors.New("s3 down"))

		_, err := svc.Create(ctx, createRequest(), images(1))
		assert.EqualError(t, err, "s3 down")
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		assert.Empty(t, pub.types)
	})

	t.Run("save failure removes uploaded images", func(t *testing.T) {
		svc, repo, uploader, _ := newTestService(t)
		uploader.On("Upload", ctx, mock.Anything, mock.Anything).Return(map[int]string{1: "https://cdn.test/1.jpg"}, nil)
		uploader.On("Remove", ctx, []string{"https://cdn.test/1.jpg"}).Return()
		repo.On("Save", ctx, mock.Anything).Return(errors.New("db down"))

		_, err := svc.Create(ctx, createRequest(), images(1))
		assert.Error(t, err)
		uploader.AssertExpectations(t)
	})
}

func TestProductService_GetByID(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestService(t)
	p := existingProduct(t)
	missing := uuid.New()

	repo.On("FindByID", ctx, p.ID).Return(p, nil)
	repo.On("FindByID", ctx, missing).Return(nil, shared.ErrNotFound)

	resp, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, resp.ID)
	assert.Equal(t, p.CreatedAt.UnixMilli(), resp.Date)

	_, err = svc.GetByID(ctx, missing)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, "Product not found.", err.Error())
}

func TestProductService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("whole catalog when unpaged", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		p := existingProduct(t)
		yes := true
		match := mock.MatchedBy(func(f shared.Filter) bool {
			return f.Page == 0 && f.PageSize == 0 &&
				f.Filters["category"] == "Clothing" &&
				f.Filters["bestseller"] == true &&
				f.Search == "coat"
		})
		repo.On("FindAll", ctx, match).Return([]catalog.Product{*p}, nil)
		repo.On("Count", ctx, match).Return(int64(1), nil)

		items, total, err := svc.List(ctx, ProductListFilter{Category: "Clothing", Bestseller: &yes, Search: "  coat "})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, items, 1)
		assert.Equal(t, "Wool Coat", items[0].Name)
	})

	t.Run("page size defaults when only page is given", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		match := mock.MatchedBy(func(f shared.Filter) bool { return f.Page == 2 && f.PageSize == 20 })
		repo.On("FindAll", ctx, match).Return([]catalog.Product{}, nil)
		repo.On("Count", ctx, match).Return(int64(21), nil)

		items, total, err := svc.List(ctx, ProductListFilter{Page: 2})
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Equal(t, int64(21), total)
	})
}

func TestProductService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("missing product", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		id := uuid.New()
		repo.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)
		name := "x"
		_, err := svc.Update(ctx, id, UpdateProductRequest{Name: &name}, nil)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty update is rejected", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		p := existingProduct(t)
		repo.On("FindByID", ctx, p.ID).Return(p, nil)
		_, err := svc.Update(ctx, p.ID, UpdateProductRequest{}, nil)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("invalid subcategory uploads nothing", func(t *testing.T) {
		svc, repo, uploader, _ := newTestService(t)
		p := existingProduct(t)
		repo.On("FindByID", ctx, p.ID).Return(p, nil)
		bad := "Hats"
		_, err := svc.Update(ctx, p.ID, UpdateProductRequest{Subcategory: &bad}, images(1))
		assert.ErrorIs(t, err, catalog.ErrInvalidSubcategory)
		uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, catalog.SubcategoryOuterwear, p.Subcategory)
	})

	t.Run("replaces image slot and removes the old object", func(t *testing.T) {
		svc, repo, uploader, pub := newTestService(t)
		p := existingProduct(t)
		price := decimal.RequireFromString("199.00")
		repo.On("FindByID", ctx, p.ID).Return(p, nil)
		uploader.On("Upload", ctx, "products/"+p.ID.String(), mock.Anything).
			Return(map[int]string{2: "https://cdn.test/new-2.jpg"}, nil)
		repo.On("Update", ctx, p).Return(nil)
		uploader.On("Remove", ctx, []string{"https://cdn.test/old-2.jpg"}).Return()

		resp, err := svc.Update(ctx, p.ID, UpdateProductRequest{Price: &price}, images(2))
		require.NoError(t, err)
		assert.True(t, price.Equal(resp.Price))
		assert.Equal(t, []string{"https://cdn.test/old-1.jpg", "https://cdn.test/new-2.jpg"}, resp.Image)
		assert.Equal(t, 2, p.Version)
		assert.Equal(t, []string{catalog.EventTypeProductUpdated}, pub.types)
		uploader.AssertExpectations(t)
	})

	t.Run("conflict removes new uploads and keeps old images", func(t *testing.T) {
		svc, repo, uploader, _ := newTestService(t)
		p := existingProduct(t)
		repo.On("FindByID", ctx, p.ID).Return(p, nil)
		uploader.On("Upload", ctx, mock.Anything, mock.Anything).
			Return(map[int]string{3: "https://cdn.test/new-3.jpg"}, nil)
		repo.On("Update", ctx, p).Return(shared.ErrConcurrencyConflict)
		uploader.On("Remove", ctx, []string{"https://cdn.test/new-3.jpg"}).Return()

		_, err := svc.Update(ctx, p.ID, UpdateProductRequest{}, images(3))
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		uploader.AssertExpectations(t)
		uploader.AssertNotCalled(t, "Remove", ctx, []string{"https://cdn.test/old-1.jpg"})
	})
}

func TestProductService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("missing product", func(t *testing.T) {
		svc, repo, _, _ := newTestService(t)
		id := uuid.New()
		repo.On("FindByID", ctx, id).Return(nil, shared.ErrNotFound)

		err := svc.Delete(ctx, id)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Equal(t, "Could not find a product to delete!", err.Error())
	})

	t.Run("deletes row and images", func(t *testing.T) {
		svc, repo, uploader, pub := newTestService(t)
		p := existingProduct(t)
		repo.On("FindByID", ctx, p.ID).Return(p, nil)
		repo.On("Delete", ctx, p.ID).Return(nil)
		uploader.On("Remove", ctx, p.Images).Return()

		require.NoError(t, svc.Delete(ctx, p.ID))
		uploader.AssertExpectations(t)
		assert.Equal(t, []string{catalog.EventTypeProductDeleted}, pub.types)
	})
}
