// Package monorepo runs the load, build and validate pipeline over a
// repository and answers impact queries against the result.
package monorepo
