// Package config loads docqa settings with viper.
//
// Values come from built-in defaults, an optional docqa.{yaml,json,toml}
// file and DOCQA_* environment variables, in increasing precedence. Nested
// keys map to variables by replacing dots with underscores:
// rag.top_k is DOCQA_RAG_TOP_K.
package config
