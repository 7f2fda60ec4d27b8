// Package remote fetches package metadata from an HTTP registry. It knows
// two endpoints: the version list of a package and the manifest of one
// version. Every failure is reported as a *Failure carrying a [Reason] so
// callers can decide whether to degrade or abort.
package remote
