package api

import (
	"fmt"
	"net/http"
	"sort"
)

// handleOpenAPI handles GET /openapi.json.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	names, err := s.registry.KnownNames()
	if err != nil {
		s.logger.Error("failed to list scripts", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list scripts")
		return
	}
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(names))
}

// buildOpenAPIDoc returns an OpenAPI 3.1 document with concrete paths for
// every known builder script.
func buildOpenAPIDoc(names []string) map[string]any {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	paths := map[string]any{
		"/healthz": map[string]any{
			"get": operation("healthz", "Service health", "200"),
		},
		"/builders": map[string]any{
			"get": operation("listBuilders", "List builders", "200"),
		},
		"/events": map[string]any{
			"get": operation("events", "Builder lifecycle event stream", "200"),
		},
	}
	for _, name := range sorted {
		for path, item := range builderPaths(name) {
			paths[path] = item
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Buildmaster",
			"version": "1.0",
		},
		"paths": paths,
	}
}

func builderPaths(name string) map[string]any {
	base := "/builders/" + name
	return map[string]any{
		base: map[string]any{
			"get": operation(name+"__output", fmt.Sprintf("%s: output", name), "200", "404"),
		},
		base + "/redeploy": map[string]any{
			"post": operation(name+"__redeploy", fmt.Sprintf("%s: redeploy", name), "200", "404"),
		},
		base + "/terminate": map[string]any{
			"post": operation(name+"__terminate", fmt.Sprintf("%s: terminate", name), "204", "404"),
		},
		base + "/history": map[string]any{
			"get": operation(name+"__history", fmt.Sprintf("%s: deployment history", name), "200", "404"),
		},
	}
}

var statusText = map[string]string{
	"200": "OK",
	"204": "No content",
	"404": "Not found",
}

func operation(id, summary string, codes ...string) map[string]any {
	responses := map[string]any{}
	for _, c := range codes {
		responses[c] = map[string]any{"description": statusText[c]}
	}
	return map[string]any{
		"operationId": id,
		"summary":     summary,
		"responses":   responses,
	}
}
