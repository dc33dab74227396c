// Package telegram connects the conversation engine to the Telegram Bot API.
//
// Adapter implements conversation.Notifier on top of
// github.com/go-telegram-bot-api/telegram-bot-api/v5. Inbound updates arrive
// either by long polling (Poll) or through a webhook server (Serve) routed
// with gorilla/mux; both convert updates to conversation.Event values and hand
// them to a Handler, normally the dispatcher.
package telegram
