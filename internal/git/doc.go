// Package git keeps shallow, single-branch checkouts of documentation
// repositories in sync with their origin.
//
// A checkout whose origin URL differs from the requested clone URL is
// removed and cloned again; a matching one is fetched and hard-reset to the
// remote branch, discarding local changes.
package git
