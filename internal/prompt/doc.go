// Package prompt renders an assembled context into the system and user
// messages sent to the generation backend.
package prompt
