package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter returns a gin engine with the HTML templates, CORS, request
// logging and every route of h.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(RequestLogger(h.log))
	r.SetHTMLTemplate(Templates())
	h.Routes(r)
	return r
}
