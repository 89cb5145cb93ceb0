// Package project scans the document source for the files of a writing
// project and caches the result for a short TTL.
//
// A scan yields a types.ProjectContext whose MainDocument is chosen by name
// (main.tex, paper.tex, thesis.tex, ...) and falls back to the first file.
// Scan failures are logged and produce an empty context instead of an error.
package project
