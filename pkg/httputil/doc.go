// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteNotFoundError(w, "package not found")
//	httputil.WriteContent(w, "text/vnd.graphviz", func(out io.Writer) error {
//		return dependencies.WriteDOT(out, graph)
//	})
//
// Errors are written as {"error": "..."}.
//
// # Request Parsing
//
//	name, ok := httputil.ParsePathStringOrError(w, r, "name")
//	changed := httputil.ParseQueryStrings(r, "changed") // ?changed=a&changed=b,c
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware(log),
//		httputil.LoggingMiddleware(log),
//	)(router)
package httputil
