package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/mnehpets/jsonrpc11/httprpc"
	"github.com/mnehpets/jsonrpc11/jsonrpc"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment as-is")
	}
	addr := os.Getenv("RPC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	svc, err := jsonrpc.New(jsonrpc.ServiceDescription{
		Name:    "calculator",
		ID:      "https://example.com/calculator",
		Version: "1.0.0",
		Summary: "A minimal JSON-RPC 1.1 calculator",
	})
	if err != nil {
		log.Fatal(err)
	}

	err = svc.Register("subtract", jsonrpc.ParamsHandler(
		func(ctx context.Context, params, options any) (any, error) {
			args, ok := params.([]any)
			if !ok || len(args) != 2 {
				return nil, jsonrpc.NewInvalidParams("subtract takes exactly two positional params")
			}
			a, aok := args[0].(float64)
			b, bok := args[1].(float64)
			if !aok || !bok {
				return nil, jsonrpc.NewInvalidParams("subtract params must be numbers")
			}
			return a - b, nil
		}))
	if err != nil {
		log.Fatal(err)
	}

	http.Handle("/rpc", httprpc.NewHandler(svc))

	log.Printf("Listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
