//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"confimport/ioc"
	"confimport/pkg/server"
)

func InitApp(ctx context.Context) (*server.HTTPServer, func(), error) {
	panic(wire.Build(
		ioc.InitConfig,
		ioc.InitLogger,
		ioc.InitStore,
		ioc.InitSource,
		ioc.InitAppService,
		ioc.InitImportHandler,
		ioc.InitRegistry,
		ioc.InitGinEngine,
		ioc.InitScheduler,
		ioc.InitHeartbeat,
		server.NewHTTPServer,
	))
}
