// Command eventcore runs the HTTP server with a small set of demonstration
// routes, the same role examples/basic/main.go plays upstream.
package main

import (
	"encoding/json"
	"log"

	"go.uber.org/zap"

	"github.com/eventcore/eventcore/app"
	"github.com/eventcore/eventcore/config"
	"github.com/eventcore/eventcore/core/httpcore"
)

func main() {
	cfg := config.New()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("eventcore: %v", err)
	}

	r := a.Router()

	r.GET("/", func(req httpcore.Request) *httpcore.Response {
		return httpcore.MakeHTML(200, []byte("<html><body>eventcore</body></html>"))
	})

	r.GET("/api/status", func(req httpcore.Request) *httpcore.Response {
		return httpcore.MakeJSON(200, []byte(`{"status":"ok"}`))
	})

	r.GET("/api/echo", func(req httpcore.Request) *httpcore.Response {
		resp := httpcore.NewResponse()
		resp.SetContentType("text/plain")
		resp.SetBody([]byte(req.Query))
		return resp
	})

	r.GET("/api/stats", func(req httpcore.Request) *httpcore.Response {
		body, err := json.Marshal(a.Monitor().GetBottlenecks())
		if err != nil {
			return httpcore.MakeJSON(500, []byte(`{"error":"marshal failed"}`))
		}
		return httpcore.MakeJSON(200, body)
	})

	r.Use(func(req *httpcore.Request, resp *httpcore.Response) {
		a.Logger().Debug("request", zap.String("method", req.Method.String()), zap.String("path", req.Path))
	})

	if err := a.Run(); err != nil {
		log.Fatalf("eventcore: %v", err)
	}
}
