// Package vision talks to an OpenRouter-compatible chat-completions endpoint
// with inline images, extracting structured card identifications and focused
// catalog-number readings. Calls are single-shot; escalation between models
// is decided by the identify orchestrator, not here.
package vision
