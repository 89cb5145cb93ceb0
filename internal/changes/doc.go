// Package changes turns successive versions of a file into line-level edits.
//
// Detect compares two versions with a line diff and reports each changed line
// as an insert, delete or replace. A Tracker remembers the last version of
// every file it has seen and keeps a short history of recent edits for the
// context bundle.
package changes
