// Package resolve turns package requests into a flat list of concrete
// package versions.
//
// [ConstraintResolver] picks one version for a single name from the local
// registry and, depending on the [Mode], a remote registry. [Graph] walks
// manifests depth first over an explicit stack, merging the ranges asserted
// for each name, pruning cycles, and reconciling names reached more than
// once.
package resolve
