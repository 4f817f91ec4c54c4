// Package docs serves the embedded OpenAPI document behind the Swagger UI.
package docs

import (
	_ "embed"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"
)

const DocPath = "/swagger/doc.json"

//go:embed doc.json
var doc []byte

// Document serves the raw OpenAPI document.
func Document(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

// UI serves the Swagger UI pointed at the document.
func UI() http.HandlerFunc {
	return httpSwagger.Handler(httpSwagger.URL(DocPath))
}
