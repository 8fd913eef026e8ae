// Package llm wraps the chat-completions API used by classification
// fallbacks: constrained category selection and attribute value fill.
//
// Both calls force a JSON response format and treat any malformed or empty
// answer as an error so callers can fall back deterministically.
package llm
