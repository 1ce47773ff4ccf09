// Package server exposes dependency graph and change-impact queries over HTTP.
//
// The server holds an immutable Snapshot of the repository behind an atomic
// pointer. A Reloader replaces it when manifests change on disk, on a cron
// schedule or on request; a failed reload leaves the previous snapshot live.
//
// # Endpoints
//
//	GET  /api/v1/packages
//	GET  /api/v1/packages/{name}
//	GET  /api/v1/packages/{name}/dependencies
//	GET  /api/v1/packages/{name}/dependents[?transitive=true]
//	GET  /api/v1/graph[?format=dot|json]
//	GET  /api/v1/graph/cytoscape[?focus=name]
//	GET  /api/v1/impact?changed=a,b&files=packages/c/x.ts
//	POST /api/v1/impact                 {"changed": [...], "files": [...]}
//	GET  /api/v1/order
//	GET  /api/v1/snapshot
//	POST /api/v1/snapshot/reload
//	GET  /healthz, /readyz, /metrics
package server
