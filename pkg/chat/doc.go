// ABOUTME: Chat history and outbound voice request types
// ABOUTME: Shapes shared history per assistant and persists it in memory or Redis
// Package chat holds the conversation history sent with every voice request.
//
// Several assistants may share one history. Before a request is built,
// AdaptHistory rewrites other assistants' replies as user messages
// carrying their name, so each assistant only ever sees its own turns as
// assistant turns, and pins the current system prompt at the front.
package chat
