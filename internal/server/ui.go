package server

import (
	"html/template"
	"net/http"
)

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>cmodel</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            max-width: 800px;
            margin: 50px auto;
            padding: 20px;
            background: #1a1a1a;
            color: #e5e5e5;
        }
        h1 { color: #60a5fa; }
        .api-list { background: #2a2a2a; padding: 20px; border-radius: 8px; }
        .api-list a { display: block; margin: 10px 0; color: #60a5fa; }
        .stats { margin-bottom: 20px; }
    </style>
</head>
<body>
    <h1>cmodel API Server</h1>
    {{with .Stats}}<div class="stats">
        {{.FileCount}} files, {{.EntityCount}} entities, {{.RelationCount}} relations, {{.DiagnosticCount}} diagnostics
        {{if .RunID}}<br>run {{.RunID}}{{end}}
    </div>{{end}}
    <div class="api-list">
        <h3>Available API Endpoints:</h3>
        <a href="/api/stats">GET /api/stats</a> - Index statistics
        <a href="/api/files">GET /api/files</a> - Parsed files
        <a href="/api/entities">GET /api/entities?kind=&amp;query=</a> - Type entities
        <a href="/api/diagnostics">GET /api/diagnostics</a> - Diagnostics with summary
        <a href="/api/health">GET /api/health</a> - Health check
        <p>GET /api/entity/{id}, /api/graph/{id}?depth=N and /api/spine/{id} take a TYPEDEF_ id.</p>
    </div>
</body>
</html>`))

// handleIndex serves the landing page listing the API.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	stats, _ := s.store.GetStats()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage.Execute(w, map[string]any{"Stats": stats}); err != nil {
		s.logger.Error("rendering index page", "err", err)
	}
}
