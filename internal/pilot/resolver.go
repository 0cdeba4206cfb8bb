package pilot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/skytour/tourpilot/internal/domain"
)

// historyWindow bounds how many prior turns are forwarded upstream, keeping
// payload size and cost flat as conversations grow.
const historyWindow = 6

// Upstream is the agent flow invoked for contextual replies.
type Upstream interface {
	RunTourGuide(ctx context.Context, input string, fc domain.FlightContext, sessionID string) (string, error)
	Configured() bool
}

// Resolver produces exactly one reply per passenger utterance. Every failure
// mode of the upstream flow is absorbed into the deterministic fallback; as
// observed by callers the operation cannot fail. A passenger should never see
// that the AI is down, only a slightly less contextual answer.
type Resolver struct {
	upstream Upstream
}

// NewResolver creates a resolver. A nil upstream means no agent flow is
// configured and every reply comes from the fallback responder.
func NewResolver(upstream Upstream) *Resolver {
	return &Resolver{upstream: upstream}
}

// Resolve returns a reply for the utterance. The telemetry must already be
// normalized; history is the session's prior turns. The caller is responsible
// for recording the reply as a turn.
func (r *Resolver) Resolve(ctx context.Context, utterance string, t domain.Telemetry, sessionID string, history []domain.Turn) Reply {
	if r.upstream == nil || !r.upstream.Configured() {
		return Reply{Text: FallbackReply(utterance, t), Origin: OriginFallback}
	}

	text, err := r.upstream.RunTourGuide(ctx, buildPrompt(utterance, history), t.FlightContext(), sessionID)
	if err != nil {
		slog.Warn("Upstream flow failed, using fallback reply", "session_id", sessionID, "error", err)
		return Reply{Text: FallbackReply(utterance, t), Origin: OriginFallback}
	}

	return Reply{Text: text, Origin: OriginModel}
}

// buildPrompt concatenates the recent conversation as speaker-prefixed lines
// ahead of the new utterance.
func buildPrompt(utterance string, history []domain.Turn) string {
	if len(history) == 0 {
		return utterance
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, turn := range history {
		if turn.Role == domain.RolePassenger {
			b.WriteString("Passenger: ")
		} else {
			b.WriteString("Captain Sarah: ")
		}
		b.WriteString(turn.Message)
		b.WriteString("\n")
	}
	b.WriteString("\nPassenger: ")
	b.WriteString(utterance)
	return b.String()
}
