// cmd/user-service/main.go
package main

import (
	"context"

	"storefront/internal/pkg/bootstrap"
	"storefront/internal/pkg/constants"
	"storefront/internal/pkg/database"
	"storefront/internal/service/user/application"
	"storefront/internal/service/user/infrastructure"
	"storefront/internal/service/user/interfaces"
)

func main() {
	cfg := bootstrap.Init()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      constants.UserService,
		Port:             cfg.Services.User.Port,
		RegisterHandlers: registerHandlers,
	})
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	db, err := database.Open(appCtx.Config.Services.User.Database, infrastructure.Models()...)
	if err != nil {
		return err
	}
	appCtx.AddCloser(func(context.Context) error { return database.Close(db) })

	repo := infrastructure.NewGormUserRepository(db)
	service := application.NewUserService(repo, appCtx.Tracer)
	interfaces.NewUserHandler(service).RegisterRoutes(appCtx.Router)
	return nil
}
