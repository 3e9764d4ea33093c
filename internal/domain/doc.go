// Package domain holds the entities of the task tracker: captured chat
// messages, the tasks extracted from them, the pending priority decisions and
// the priority scale with its important tier.
package domain
