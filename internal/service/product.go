package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/cartling/go-shop-api/internal/dto"
	"github.com/cartling/go-shop-api/internal/model"
	"github.com/cartling/go-shop-api/internal/repository"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidPrice guards what gin binding cannot: validator's numeric
	// rules do not apply to decimal.Decimal fields.
	ErrInvalidPrice = errors.New("price must be greater than zero")
)

const listVersionKey = "products:list:ver"

type ProductService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	redisClient  *redis.Client
	cacheTTL     time.Duration
}

func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository, redisClient *redis.Client, cacheTTL time.Duration) *ProductService {
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		redisClient:  redisClient,
		cacheTTL:     cacheTTL,
	}
}

func (s *ProductService) Create(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	if !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	category, err := s.categoryRepo.GetByID(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}

	product := &model.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.invalidateListCache(ctx)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	resp := toProductResponse(product)
	return &resp, nil
}

// List serves the filtered catalog. Results are cached per normalized filter
// set; any product mutation bumps the namespace version, which orphans every
// cached listing at once.
func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) (*dto.ProductListResponse, error) {
	cacheKey := s.listCacheKey(ctx, req)
	if s.redisClient != nil && cacheKey != "" {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			var resp dto.ProductListResponse
			if json.Unmarshal([]byte(cached), &resp) == nil {
				return &resp, nil
			}
		}
	}

	products, err := s.productRepo.List(ctx, repository.ProductFilter{
		CategoryID: req.CategoryID,
		MinPrice:   req.MinPrice,
		MaxPrice:   req.MaxPrice,
		Search:     req.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for _, p := range products {
		items = append(items, toProductResponse(&p))
	}
	resp := &dto.ProductListResponse{Products: items, Total: len(items)}

	if s.redisClient != nil && cacheKey != "" {
		if data, err := json.Marshal(resp); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, s.cacheTTL)
		}
	}
	return resp, nil
}

func (s *ProductService) Update(ctx context.Context, id uuid.UUID, req dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	if req.Price != nil && !req.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if req.CategoryID != nil {
		category, err := s.categoryRepo.GetByID(ctx, *req.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("get category: %w", err)
		}
		if category == nil {
			return nil, ErrCategoryNotFound
		}
		product.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.invalidateListCache(ctx)
	resp := toProductResponse(product)
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateListCache(ctx)
	return nil
}

// listCacheKey folds the namespace version and the normalized filters into the
// key, so bumping the version invalidates everything without scanning keys.
func (s *ProductService) listCacheKey(ctx context.Context, req dto.ListProductsRequest) string {
	if s.redisClient == nil {
		return ""
	}
	ver, err := s.redisClient.Get(ctx, listVersionKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return ""
		}
		ver = "0"
	}

	normalized := fmt.Sprintf("cat=%s&min=%s&max=%s&q=%s",
		uuidOrEmpty(req.CategoryID), decimalOrEmpty(req.MinPrice), decimalOrEmpty(req.MaxPrice), req.Search,
	)
	sum := md5.Sum([]byte(normalized))
	return fmt.Sprintf("products:list:%s:%s", ver, hex.EncodeToString(sum[:]))
}

func (s *ProductService) invalidateListCache(ctx context.Context) {
	if s.redisClient != nil {
		s.redisClient.Incr(ctx, listVersionKey)
	}
}

func uuidOrEmpty(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func decimalOrEmpty(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
