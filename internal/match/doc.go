// Package match implements the comic identification decision engine: the
// trigger policy that decides when image analysis runs, the vision match
// orchestration across comparison and identification modes, and the
// re-ranker that turns a free-form identification into trustworthy catalog
// candidates.
package match
