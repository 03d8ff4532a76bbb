package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkrupp/mediakit/internal/infra/config"
	"github.com/mkrupp/mediakit/internal/infra/logging"
	"github.com/mkrupp/mediakit/internal/infra/transport/http"
	"github.com/mkrupp/mediakit/internal/repo/objectstore"
	"github.com/mkrupp/mediakit/internal/svc/imagesvc"
)

const (
	appName = "mediakit"
	svcName = "mediasvc"
)

type Config struct {
	config.EnvConfig

	Log       logging.LoggerConfig         `envPrefix:"LOG_"`
	Image     imagesvc.ImageConfig         `envPrefix:"IMAGE_"`
	ImageHTTP imagesvc.HTTPTransportConfig `envPrefix:"HTTP_"`
	Store     objectstore.Config           `envPrefix:"STORE_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.mediasvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	imageSvc, err := imagesvc.NewBlobImageService(
		ctx,
		objectstore.NewFactory(cfg.Store),
		cfg.Image,
	)
	if err != nil {
		return fmt.Errorf("new image service: %w", err)
	}
	defer imageSvc.Flush()

	httpTransport := imagesvc.NewHTTPTransport(imageSvc, cfg.ImageHTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.ImageHTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
