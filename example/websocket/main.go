package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/mnehpets/jsonrpc11/jsonrpc"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandler serves the dispatcher over a websocket: each text message is
// one JSON-RPC 1.1 request, each reply one response.
func wsHandler(svc *jsonrpc.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade:", err)
			return
		}
		defer c.Close()

		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				log.Println("ws read:", err)
				return
			}
			resp := svc.Call(r.Context(), data, c.RemoteAddr())
			if err := c.WriteMessage(websocket.TextMessage, resp); err != nil {
				log.Println("ws write:", err)
				return
			}
		}
	}
}

func main() {
	svc, err := jsonrpc.New(jsonrpc.ServiceDescription{
		Name: "strings",
		ID:   "https://example.com/strings",
	})
	if err != nil {
		log.Fatal(err)
	}

	err = svc.Register("reverse", jsonrpc.ParamsHandler(
		func(ctx context.Context, params, options any) (any, error) {
			args, ok := params.([]any)
			if !ok || len(args) != 1 {
				return nil, jsonrpc.NewInvalidParams("reverse takes one positional param")
			}
			in, ok := args[0].(string)
			if !ok {
				return nil, jsonrpc.NewInvalidParams("reverse param must be a string")
			}
			runes := []rune(in)
			for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
				runes[i], runes[j] = runes[j], runes[i]
			}
			return string(runes), nil
		}))
	if err != nil {
		log.Fatal(err)
	}

	err = svc.Register("uppercase", jsonrpc.ParamsHandler(
		func(ctx context.Context, params, options any) (any, error) {
			args, ok := params.([]any)
			if !ok || len(args) != 1 {
				return nil, jsonrpc.NewInvalidParams("uppercase takes one positional param")
			}
			in, ok := args[0].(string)
			if !ok {
				return nil, jsonrpc.NewInvalidParams("uppercase param must be a string")
			}
			return strings.ToUpper(in), nil
		}))
	if err != nil {
		log.Fatal(err)
	}

	http.HandleFunc("/rpc", wsHandler(svc))

	log.Println("Listening on :8082")
	log.Fatal(http.ListenAndServe(":8082", nil))
}
