//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/cuongccna/ProjectBotTrading/internal/biz"
	"github.com/cuongccna/ProjectBotTrading/internal/conf"
	"github.com/cuongccna/ProjectBotTrading/internal/data"
	"github.com/cuongccna/ProjectBotTrading/internal/server"
	"github.com/cuongccna/ProjectBotTrading/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Review, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		StartReviewCrons,
		newApp,
	))
}
