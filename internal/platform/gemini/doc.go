// Package gemini provides an implementation of the generation.Completer interface
// on top of Google's Gemini API (google.golang.org/genai).
//
// This package is an infrastructure adapter: it translates a plain prompt into
// a GenerateContent request and the first candidate back into text. It does
// not retry; the extraction client owns retry and timeout policy.
//
// Errors:
//   - transport and API failures wrap generation.ErrTransportFailure
//   - replies blocked by safety filters, or without any text part, wrap
//     generation.ErrInvalidResponse (which the caller still retries, because
//     a resampled reply often succeeds)
package gemini
