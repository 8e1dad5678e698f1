// Package closure computes the set of local files reachable from a starting
// markdown document by following relative links and image references.
//
// Paths are slash-separated and relative to the root of the fs.FS the Walker
// reads from, normally one repository checkout. Targets are resolved against
// the directory of the document that links them; a leading "/" resolves from
// the repository root. Targets escaping the root are skipped.
package closure
