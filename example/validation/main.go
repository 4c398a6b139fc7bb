package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/mnehpets/jsonrpc11/httprpc"
	"github.com/mnehpets/jsonrpc11/jsonrpc"
	"github.com/mnehpets/jsonrpc11/schema"
)

// Config is the example server configuration, read from config.toml.
type Config struct {
	Listen    string `toml:"listen"`
	SchemaDir string `toml:"schema_dir"`
	Name      string `toml:"name"`
	ID        string `toml:"id"`
	Version   string `toml:"version"`
	Summary   string `toml:"summary"`
}

func main() {
	var cfg Config
	if _, err := toml.DecodeFile("config.toml", &cfg); err != nil {
		log.Fatal(err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", "validation-example").Logger()

	validator, err := schema.NewValidationDir(cfg.SchemaDir)
	if err != nil {
		log.Fatal(err)
	}

	svc, err := jsonrpc.New(jsonrpc.ServiceDescription{
		Name:    cfg.Name,
		ID:      cfg.ID,
		Version: cfg.Version,
		Summary: cfg.Summary,
	},
		jsonrpc.WithValidator(validator),
		jsonrpc.WithResultValidation(),
		jsonrpc.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	err = svc.Register("subtract", jsonrpc.ParamsHandler(
		func(ctx context.Context, params, options any) (any, error) {
			// The schema guarantees exactly two numbers.
			args := params.([]any)
			return args[0].(float64) - args[1].(float64), nil
		}))
	if err != nil {
		log.Fatal(err)
	}

	err = svc.Register("ping", jsonrpc.NoParamsHandler(
		func(ctx context.Context, options any) (any, error) {
			return nil, nil
		}))
	if err != nil {
		log.Fatal(err)
	}

	http.Handle("/rpc", httprpc.NewHandler(svc))

	logger.Info().Str("listen", cfg.Listen).Msg("serving")
	log.Fatal(http.ListenAndServe(cfg.Listen, nil))
}
