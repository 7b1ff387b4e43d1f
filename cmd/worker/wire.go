//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/rabbitpom/rapidl-backend/internal/biz"
	"github.com/rabbitpom/rapidl-backend/internal/conf"
	"github.com/rabbitpom/rapidl-backend/internal/data"
	"github.com/rabbitpom/rapidl-backend/internal/server"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Bootstrap, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, newApp))
}
