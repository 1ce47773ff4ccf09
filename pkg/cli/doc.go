// Package cli provides the morp command-line interface.
//
// # Commands
//
// graph: Export the dependency graph (dependencies.dot by default)
//
//	morp graph -p ~/src/monorepo -o deps.dot
//	morp graph --format json -o -
//	morp graph --check
//
// diff: List packages impacted by the current change
//
//	morp diff --branch develop --prefix @acme/
//	morp diff packages/core/src/index.ts README.md
//	git diff develop... > change.patch && morp diff --patch change.patch
//
// order: Print packages in dependency order
//
//	morp order
//
// serve: Run the HTTP service
//
//	morp serve --addr :8080
//
// # Configuration
//
// Settings are layered: built-in defaults, then <root>/.morp.yaml (or
// --config), then MORP_* environment variables, then command-line flags.
// See package config for the keys.
package cli
