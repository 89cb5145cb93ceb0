// Package config loads runtime settings from defaults, an optional
// texcontext.yaml/json file, TEXCONTEXT_* environment variables and
// command-line flags, in increasing priority.
//
// OPENAI_API_KEY and JINA_API_KEY are honoured as fallbacks for the
// generation and embedding keys.
package config
