// Package pilot produces tour guide replies for passenger utterances, backed
// by an upstream agent flow with a deterministic local fallback.
package pilot

// WelcomeMessage greets a passenger when a tour starts. It is static on
// purpose: session start must not spend an upstream call.
const WelcomeMessage = "Welcome aboard! I'm Captain Sarah Mitchell, your tour guide today. Feel free to ask me anything about our flight!"

// ReplyOrigin describes how a reply was produced, for observability only.
type ReplyOrigin string

const (
	// OriginModel marks a reply generated by the upstream agent flow.
	OriginModel ReplyOrigin = "model"
	// OriginFallback marks a reply produced by the deterministic responder.
	OriginFallback ReplyOrigin = "fallback"
)

// Reply is the transient result of resolving one passenger utterance.
type Reply struct {
	Text   string
	Origin ReplyOrigin
}
