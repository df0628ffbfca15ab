// cmd/seed-data/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/constants"
	"storefront/internal/pkg/httpclient"
	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/tracing"
	orderapp "storefront/internal/service/order/application"
	productapp "storefront/internal/service/product/application"
	userapp "storefront/internal/service/user/application"
)

const serviceName = "seed-data"

var sampleUsers = []userapp.CreateUserRequest{
	{Username: "john_doe", Email: "john@example.com", FirstName: "John", LastName: "Doe",
		Password: "password123", Phone: "+1234567890", Address: "123 Main St, New York, NY 10001"},
	{Username: "jane_smith", Email: "jane@example.com", FirstName: "Jane", LastName: "Smith",
		Password: "password123", Phone: "+1987654321", Address: "456 Oak Ave, Los Angeles, CA 90001"},
}

var sampleCategories = []productapp.CreateCategoryRequest{
	{Name: "Electronics", Description: "Electronic devices and gadgets"},
	{Name: "Books", Description: "Books and educational materials"},
	{Name: "Clothing", Description: "Apparel and accessories"},
}

type sampleProduct struct {
	name, description, category, price string
	stock                              int
}

var sampleProducts = []sampleProduct{
	{"iPhone 15", "Latest Apple smartphone", "Electronics", "999.99", 50},
	{"Samsung Galaxy S23", "Android flagship smartphone", "Electronics", "899.99", 30},
	{"MacBook Pro", "Apple laptop for professionals", "Electronics", "1999.99", 20},
	{"Python Programming Book", "Learn Python programming", "Books", "29.99", 100},
	{"T-Shirt", "Cotton t-shirt", "Clothing", "19.99", 200},
}

func main() {
	cfg := bootstrap.Init()
	logger.Init(serviceName, cfg.App.LogLevel, true)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	client := httpclient.NewClient(otel.Tracer(serviceName), bootstrap.StaticResolver(cfg), cfg.Upstreams.Timeout)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, client); err != nil {
		log.Error().Err(err).Msg("seeding failed")
		_ = tp.Shutdown(context.Background())
		os.Exit(1)
	}
	log.Info().Msg("sample data created")
}

func run(ctx context.Context, client *httpclient.Client) error {
	for _, svc := range []string{constants.UserService, constants.ProductService, constants.OrderService} {
		if err := waitHealthy(ctx, client, svc); err != nil {
			return err
		}
	}

	userIDs := make([]int64, 0, len(sampleUsers))
	for _, u := range sampleUsers {
		id, err := ensureUser(ctx, client, u)
		if err != nil {
			return err
		}
		userIDs = append(userIDs, id)
	}

	categoryIDs := make(map[string]int64, len(sampleCategories))
	for _, c := range sampleCategories {
		id, err := ensureCategory(ctx, client, c)
		if err != nil {
			return err
		}
		categoryIDs[c.Name] = id
	}

	productIDs := make(map[string]int64, len(sampleProducts))
	for _, p := range sampleProducts {
		id, err := ensureProduct(ctx, client, p, categoryIDs[p.category])
		if err != nil {
			return err
		}
		productIDs[p.name] = id
	}

	orders := []orderapp.CreateOrderRequest{
		{
			UserID:          userIDs[0],
			ShippingAddress: sampleUsers[0].Address,
			Items: []orderapp.CreateOrderItem{
				{ProductID: productIDs["iPhone 15"], Quantity: 1},
				{ProductID: productIDs["Python Programming Book"], Quantity: 2},
			},
		},
		{
			UserID:          userIDs[1],
			ShippingAddress: sampleUsers[1].Address,
			Items: []orderapp.CreateOrderItem{
				{ProductID: productIDs["MacBook Pro"], Quantity: 1},
				{ProductID: productIDs["T-Shirt"], Quantity: 3},
			},
		},
	}
	for i := range orders {
		var created orderapp.OrderResponse
		status, err := client.PostJSON(ctx, constants.OrderService, "/orders/", &orders[i], &created)
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			return fmt.Errorf("create order for user %d: status %d", orders[i].UserID, status)
		}
		log.Info().Int64("order_id", created.ID).Str("total_amount", created.TotalAmount).Msg("order created")
	}
	return nil
}

// waitHealthy 轮询 /healthz 直到服务就绪
func waitHealthy(ctx context.Context, client *httpclient.Client, service string) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		status, err := client.GetJSON(ctx, service, "/healthz", nil)
		if err == nil && status == http.StatusOK {
			log.Info().Str("target", service).Msg("service is ready")
			return nil
		}
		log.Info().Str("target", service).Msg("waiting for service")
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%s not ready", service)
		case <-ticker.C:
		}
	}
}

func ensureUser(ctx context.Context, client *httpclient.Client, req userapp.CreateUserRequest) (int64, error) {
	var created userapp.CreateUserResponse
	status, err := client.PostJSON(ctx, constants.UserService, "/users/", &req, &created)
	if err != nil {
		return 0, err
	}
	if status == http.StatusCreated {
		log.Info().Str("username", req.Username).Int64("id", created.ID).Msg("user created")
		return created.ID, nil
	}

	var existing []userapp.UserResponse
	if _, err := client.GetJSON(ctx, constants.UserService, "/users/", &existing); err != nil {
		return 0, err
	}
	for _, u := range existing {
		if u.Username == req.Username {
			log.Info().Str("username", req.Username).Msg("user already exists")
			return u.ID, nil
		}
	}
	return 0, fmt.Errorf("create user %s: status %d", req.Username, status)
}

func ensureCategory(ctx context.Context, client *httpclient.Client, req productapp.CreateCategoryRequest) (int64, error) {
	var existing []productapp.CategoryResponse
	if _, err := client.GetJSON(ctx, constants.ProductService, "/categories/", &existing); err != nil {
		return 0, err
	}
	for _, c := range existing {
		if c.Name == req.Name {
			return c.ID, nil
		}
	}

	var created productapp.CategoryResponse
	status, err := client.PostJSON(ctx, constants.ProductService, "/categories/", &req, &created)
	if err != nil {
		return 0, err
	}
	if status != http.StatusCreated {
		return 0, fmt.Errorf("create category %s: status %d", req.Name, status)
	}
	log.Info().Str("category", req.Name).Int64("id", created.ID).Msg("category created")
	return created.ID, nil
}

func ensureProduct(ctx context.Context, client *httpclient.Client, p sampleProduct, categoryID int64) (int64, error) {
	var existing []productapp.ProductListItem
	if _, err := client.GetJSON(ctx, constants.ProductService, "/products/", &existing); err != nil {
		return 0, err
	}
	for _, e := range existing {
		if e.Name == p.name {
			return e.ID, nil
		}
	}

	req := productapp.CreateProductRequest{
		Name:          p.name,
		Description:   p.description,
		Price:         decimal.RequireFromString(p.price),
		Category:      categoryID,
		StockQuantity: p.stock,
	}
	var created productapp.ProductResponse
	status, err := client.PostJSON(ctx, constants.ProductService, "/products/", &req, &created)
	if err != nil {
		return 0, err
	}
	if status != http.StatusCreated {
		return 0, fmt.Errorf("create product %s: status %d", p.name, status)
	}
	log.Info().Str("product", p.name).Int64("id", created.ID).Msg("product created")
	return created.ID, nil
}
