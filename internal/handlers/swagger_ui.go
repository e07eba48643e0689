package handlers

import (
	"html/template"
	"net/http"
)

const swaggerAssets = "https://unpkg.com/swagger-ui-dist@5.10.0"

type swaggerPageData struct {
	Title   string
	Assets  string
	SpecURL string
}

var swaggerPage = template.Must(template.New("swagger").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="{{.Assets}}/swagger-ui.css">
</head>
<body style="margin:0">
  <div id="docs"></div>
  <script src="{{.Assets}}/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: "{{.SpecURL}}",
      dom_id: "#docs",
      persistAuthorization: true,
      tryItOutEnabled: true,
      defaultModelsExpandDepth: 0
    });
  </script>
</body>
</html>`))

// SwaggerUI serves the interactive docs; the X-API-Key entered there is kept
// across reloads
func SwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	swaggerPage.Execute(w, swaggerPageData{
		Title:   "Developer Reliability API",
		Assets:  swaggerAssets,
		SpecURL: "/openapi.json",
	})
}
