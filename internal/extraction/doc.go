// Package extraction turns a window of raw chat messages into task strings.
//
// A Client formats the window into one bounded context block, embeds it in the
// instruction template and performs one completion per attempt through a
// generation.Completer. Every failed attempt is retried with exponential backoff
// plus jitter, and the whole loop runs under an overall deadline that maps to
// generation.ErrTimeout. The reply is parsed line by line; if it mentions the
// "no tasks" sentinel anywhere, the whole batch yields no tasks.
package extraction
