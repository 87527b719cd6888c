package routes

import (
	"html/template"
	"net/http"

	"github.com/abiiranathan/pdfmatch/metrics"
)

func SetupRoutes(mux *http.ServeMux, tmpl *template.Template, svc *Services) {
	// Home path
	mux.HandleFunc("GET /{$}", Home(tmpl))

	// Search endpoint
	mux.HandleFunc("POST /search", Search(svc))

	// Serve generated images
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(svc.StaticDir))))

	mux.Handle("GET /metrics", metrics.Handler())
}
