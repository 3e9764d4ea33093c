// Package api is the admin HTTP surface. It exposes the operator commands of
// the chat bot (process a chat, re-parse history, hourly pass, capacity
// recount) plus job status, pending records and staff management, all behind
// bearer-token authentication. Long-running operations are queued on the task
// runner and answered with 202 and a job id.
package api
