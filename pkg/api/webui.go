package api

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed static/*
var staticFiles embed.FS

// setupWebUI serves the inspection UI at / and its assets under /static.
func (s *Server) setupWebUI() {
	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}

	s.engine.StaticFS("/static", http.FS(assets))
	s.engine.GET("/", func(c *gin.Context) {
		index, err := fs.ReadFile(assets, "index.html")
		if err != nil {
			c.String(http.StatusInternalServerError, "web UI unavailable")
			return
		}
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "text/html; charset=utf-8", index)
	})
}
