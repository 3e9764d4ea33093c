// Package prioritization drives the human-in-the-loop priority workflow for
// extracted tasks and bounds the number of important tasks in the ledger.
//
// A pending record moves through these states:
//
//	created ──select P (not important)────────────────> prioritized
//	        ──select P (important, capacity allows)────> prioritized
//	        ──select P (important, capacity full)──────> awaiting secondary choice
//	                  ──downgrade to medium/low────────> downgraded
//	                  ──keep at P──> nomination ──demote row R──> prioritized
//	        ──delete──────────────────────────────────> deleted
//
// Terminal transitions remove the pending record in one transaction with
// marking its source messages processed. A batch's messages flip only when
// the last open record of that batch resolves, so a task abandoned at the
// prompt keeps its messages available for the next pass.
//
// Every decision, delete included, first claims the record in the store.
// A decision on a record that is gone or held by a concurrent decision
// resolves as stale and changes nothing. Double clicks and two operators
// answering the same prompt are absorbed this way.
//
// Ledger writes happen before the record is finalized. A ledger failure
// releases the claim so the same prompt can be answered again; the
// capacity check alone fails open.
//
// Capacity is checked before appending (ask-before-append). The Enforcer's
// automatic downgrade only runs as a corrective recount.
package prioritization
