// internal/service/member/application/catalog.go
package application

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/domain/port"
)

// CatalogService 加载会员可兑换的商品目录。
type CatalogService struct {
	catalog port.ProductCatalog
	rule    port.VisibilityRule // 可为 nil
	tracer  trace.Tracer
}

func NewCatalogService(catalog port.ProductCatalog, rule port.VisibilityRule, tracer trace.Tracer) *CatalogService {
	return &CatalogService{catalog: catalog, rule: rule, tracer: tracer}
}

// Load 返回会员的专属商品；没有专属商品（或未登录）时回退到公共目录。
// 结果按 Order 稳定排序，query 非空时按名称过滤。
func (s *CatalogService) Load(ctx context.Context, m *domain.Member, query string) ([]ProductView, error) {
	products, err := s.products(ctx, m)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		if p.MatchesQuery(query) {
			views = append(views, toProductView(p))
		}
	}
	return views, nil
}

// Find 在会员可见的目录中按文档 id 查找商品。兑换时以服务端目录为准，不信任客户端提交的价格。
func (s *CatalogService) Find(ctx context.Context, m *domain.Member, documentID string) (domain.Product, error) {
	products, err := s.products(ctx, m)
	if err != nil {
		return domain.Product{}, err
	}
	for _, p := range products {
		if p.DocumentID == documentID {
			return p, nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

func (s *CatalogService) products(ctx context.Context, m *domain.Member) ([]domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "app.LoadCatalog")
	defer span.End()

	var products []domain.Product
	if m != nil {
		allowed, err := s.catalog.AllowedProducts(ctx, m.Number)
		if err != nil {
			// 专属目录读取失败时仍然展示公共目录
			span.RecordError(err)
			logger.Ctx(ctx).Warn().Err(err).Str("member", m.Number).Msg("Failed to load allowed products, falling back")
		}
		products = allowed
	}
	source := "allowed"
	if len(products) == 0 {
		source = "public"
		public, err := s.catalog.PublicProducts(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to load catalog")
			return nil, err
		}
		products = public
	}

	products = s.filterVisible(ctx, m, products)
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Order < products[j].Order
	})

	span.SetAttributes(
		attribute.String("catalog.source", source),
		attribute.Int("catalog.size", len(products)),
	)
	return products, nil
}

func (s *CatalogService) filterVisible(ctx context.Context, m *domain.Member, products []domain.Product) []domain.Product {
	if s.rule == nil || m == nil {
		return products
	}
	out := products[:0:0]
	for _, p := range products {
		ok, err := s.rule.Visible(ctx, m, p)
		if err != nil {
			// 规则求值出错时不隐藏商品
			logger.Ctx(ctx).Warn().Err(err).Str("product", p.DocumentID).Msg("Visibility rule evaluation failed")
			ok = true
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}
