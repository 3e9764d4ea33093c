// Package generation defines the boundary between the application core and
// external language model services. The core only needs a text-in/text-out
// Completer; the Gemini and OpenAI adapters live under internal/platform.
package generation
