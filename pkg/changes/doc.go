// Package changes turns a working-tree diff into the set of packages it touches.
//
// A Source lists changed files (from git, a saved patch or an explicit list)
// and a Classifier maps each old and new path to an owning package name.
// Paths outside the packages directory belong to the RootPackage sentinel.
package changes
