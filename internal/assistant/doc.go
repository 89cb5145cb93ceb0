// Package assistant wires the context pipeline into one service object per
// editing session.
//
// A Service owns the project scan cache, the semantic index, the query cache
// and the edit history. Editors report edits through ContentChanged or
// FileChanged; the service never polls. AssembleContext and Complete are the
// read side.
package assistant
