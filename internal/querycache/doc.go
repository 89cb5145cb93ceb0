// Package querycache memoizes assembled contexts keyed by cursor position.
//
// The key combines the file path, the cursor offset, a hash of the text just
// before the cursor and the project fingerprint. The most recently served
// entry is checked first, so repeated requests at an unchanged cursor skip
// the table entirely. Entries expire after a TTL; when the cache is full the
// entry with the fewest accesses goes first, oldest access breaking ties.
//
// InvalidateFile drops every entry that drew on a file, which is how edit
// notifications reach the cache.
package querycache
