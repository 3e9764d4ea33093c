// Package telegram is a small client for the Telegram Bot API covering the
// calls the bot needs: long-polling for updates, sending and editing
// messages, and answering callback queries.
package telegram
