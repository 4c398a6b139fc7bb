package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/joho/godotenv"

	"github.com/mnehpets/jsonrpc11/httprpc"
	"github.com/mnehpets/jsonrpc11/jsonrpc"
)

// claimsFromRequest verifies the bearer token and returns its claims as
// the opaque per-call options. The dispatcher never inspects them; only
// handlers that care about identity do.
func claimsFromRequest(secret []byte) func(r *http.Request) any {
	return func(r *http.Request) any {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return nil
		}
		token, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
		if err != nil {
			return nil
		}
		var claims map[string]any
		if err := token.Claims(secret, &claims); err != nil {
			return nil
		}
		return claims
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file, using environment as-is")
	}
	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		log.Fatal("JWT_SECRET is required")
	}

	svc, err := jsonrpc.New(jsonrpc.ServiceDescription{
		Name: "identity",
		ID:   "https://example.com/identity",
	})
	if err != nil {
		log.Fatal(err)
	}

	err = svc.Register("whoami", jsonrpc.NoParamsHandler(
		func(ctx context.Context, options any) (any, error) {
			claims, ok := options.(map[string]any)
			if !ok {
				return nil, &jsonrpc.APIError{Code: 401, Message: "Not authenticated"}
			}
			return map[string]any{"subject": claims["sub"]}, nil
		}))
	if err != nil {
		log.Fatal(err)
	}

	handler := httprpc.NewHandler(svc, httprpc.WithOptions(claimsFromRequest(secret)))
	http.Handle("/rpc", handler)

	log.Println("Listening on :8083")
	log.Fatal(http.ListenAndServe(":8083", nil))
}
