package router

import (
	"github.com/inkpress/account-service/internal/application"
	"github.com/inkpress/account-service/internal/container"
	pginfra "github.com/inkpress/account-service/internal/infrastructure/postgres"
	handlers "github.com/inkpress/account-service/internal/interface/http"
	"github.com/inkpress/account-service/internal/router/modules"
)

func buildAccountModule() Module {
	cfg := container.GetConfig()
	repo := pginfra.NewUserRepository(container.GetPGPool())

	service := application.NewService(
		repo,
		container.GetJWT(),
		container.GetGCS(),
		cfg.GCSBucket,
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		container.GetRabbitPub(),
		cfg.AppName,
	)

	handler := handlers.NewAccountHandler(
		service,
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
	)

	return modules.NewAccountModule(handler, container.GetJWT())
}

// InitModules initializes all application modules and registers them with the
// router registry. Called once during startup.
func InitModules(r *Registry) {
	r.Add(buildAccountModule())
}
