// Package pipeline runs one complete book build: enumerate repositories,
// sync each checkout, compute the README closure, copy it into the book,
// rewrite relative links, generate the index, then record the outcome.
package pipeline
