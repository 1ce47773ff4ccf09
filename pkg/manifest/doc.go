// Package manifest reads package manifests from a monorepo's packages directory
package manifest
