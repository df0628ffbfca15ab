// internal/service/product/application/service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/logger"
	"storefront/internal/service/product/domain"
)

// CatalogService 商品目录与库存台账
type CatalogService struct {
	products   domain.ProductRepository
	categories domain.CategoryRepository
	tracer     trace.Tracer
}

func NewCatalogService(products domain.ProductRepository, categories domain.CategoryRepository, tracer trace.Tracer) *CatalogService {
	return &CatalogService{products: products, categories: categories, tracer: tracer}
}

func (s *CatalogService) CreateCategory(ctx context.Context, req *CreateCategoryRequest) (*CategoryResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidCategory
	}
	c := &domain.Category{Name: name, Description: req.Description}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	resp := toCategoryResponse(c)
	return &resp, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id int64) (*CategoryResponse, error) {
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toCategoryResponse(c)
	return &resp, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]CategoryResponse, error) {
	cs, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, toCategoryResponse(c))
	}
	return out, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*ProductResponse, error) {
	p, err := domain.NewProduct(req.Name, req.Description, req.Price, req.Category, req.StockQuantity)
	if err != nil {
		return nil, err
	}
	if _, err := s.categories.FindByID(ctx, req.Category); err != nil {
		if errors.Is(err, domain.ErrCategoryNotFound) {
			return nil, fmt.Errorf("%w: category %d does not exist", domain.ErrInvalidProduct, req.Category)
		}
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Int64("product_id", p.ID).Str("name", p.Name).Msg("product created")
	resp := toProductResponse(p)
	return &resp, nil
}

// GetProduct 管理视图，包含下架商品
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*ProductResponse, error) {
	p, err := s.products.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(p)
	return &resp, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]ProductListItem, error) {
	ps, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]ProductListItem, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductListItem(p))
	}
	return out, nil
}

// LookupProduct 供其他服务调用，下架商品视为不存在
func (s *CatalogService) LookupProduct(ctx context.Context, id int64) (*ProductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.LookupProduct", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p, err := s.products.FindByID(ctx, id, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resp := toProductResponse(p)
	return &resp, nil
}

// CheckStock quantity 为 nil 时按 1 件检查。
// 库存不足不是错误，Available=false 由调用方转换为 400。
func (s *CatalogService) CheckStock(ctx context.Context, productID int64, quantity *int) (*StockCheckResult, error) {
	qty := 1
	if quantity != nil {
		qty = *quantity
	}
	ctx, span := s.tracer.Start(ctx, "catalog.CheckStock", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("quantity", qty),
	))
	defer span.End()

	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	p, err := s.products.FindByID(ctx, productID, true)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !p.HasStock(qty) {
		span.AddEvent("insufficient stock")
		return &StockCheckResult{Available: false, StockQuantity: p.StockQuantity}, nil
	}
	return &StockCheckResult{
		Available:     true,
		ProductName:   p.Name,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
	}, nil
}

// UpdateStock 对任意商品（包括下架商品）增减库存
func (s *CatalogService) UpdateStock(ctx context.Context, req *UpdateStockRequest) (*UpdateStockResponse, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.UpdateStock", trace.WithAttributes(
		attribute.Int64("product.id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
		attribute.String("operation", req.Operation),
	))
	defer span.End()

	op, err := domain.ParseStockOperation(req.Operation)
	if err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	newStock, err := s.products.AdjustStock(ctx, req.ProductID, op.Delta(req.Quantity))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Ctx(ctx).Warn().Err(err).
			Int64("product_id", req.ProductID).
			Str("operation", string(op)).
			Int("quantity", req.Quantity).
			Msg("stock update rejected")
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Int64("product_id", req.ProductID).
		Str("operation", string(op)).
		Int("quantity", req.Quantity).
		Int("new_stock", newStock).
		Msg("stock updated")
	return &UpdateStockResponse{Success: true, NewStock: newStock}, nil
}
