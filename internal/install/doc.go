// Package install materializes one resolved package into a workspace.
//
// [Planner.Plan] runs three phases. Planning expands every registry file
// into per-platform targets and picks directory or file tracking for each
// group of files. Conflict resolution checks each target against the other
// packages' index records and pre-existing files, asking a [Decider] when
// no policy applies. Apply diffs the plan against the package's previous
// index record, writes, updates or deletes files, and persists the new
// record. Every decision is made before the first write.
package install
