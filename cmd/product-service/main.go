// cmd/product-service/main.go
package main

import (
	"context"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/constants"
	"storefront/internal/pkg/database"
	"storefront/internal/service/product/application"
	"storefront/internal/service/product/infrastructure"
	"storefront/internal/service/product/interfaces"
)

func main() {
	cfg := bootstrap.Init()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      constants.ProductService,
		Port:             cfg.Services.Product.Port,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	db, err := database.Open(appCtx.Config.Services.Product.Database, infrastructure.Models()...)
	if err != nil {
		return err
	}
	appCtx.AddCloser(func(context.Context) error { return database.Close(db) })

	catalog := application.NewCatalogService(
		infrastructure.NewGormProductRepository(db),
		infrastructure.NewGormCategoryRepository(db),
		appCtx.Tracer,
	)
	interfaces.NewProductHandler(catalog).RegisterRoutes(appCtx.Router)
	return nil
}
