// Package bot dispatches Telegram updates: it stores client messages from
// group chats, runs operator commands and routes priority-prompt button
// presses to the prioritization service.
//
// Callback data formats:
//
//	prio:<pending>:<priority>          primary choice
//	downgrade:<pending>:<priority>     secondary choice, medium or low
//	keep_high:<pending>:<priority>     secondary choice, keep the important tier
//	demote:<pending>:<priority>:<row>  nominate ledger row <row> for downgrade
//	del:<pending>                      reject the task
package bot
