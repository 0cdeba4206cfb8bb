package pilot

import (
	"fmt"
	"math"
	"strings"

	"github.com/skytour/tourpilot/internal/domain"
)

// FallbackReply is the deterministic responder used whenever the upstream
// flow cannot produce a reply. It is a pure function over the utterance and
// the current telemetry: no network, no state, never fails.
func FallbackReply(utterance string, t domain.Telemetry) string {
	lower := strings.ToLower(utterance)

	if t.OnGround {
		if strings.Contains(lower, "ready") || strings.Contains(lower, "start") {
			return "We're all set for takeoff! Just waiting for clearance from the tower. It's going to be a beautiful flight today!"
		}
		return "We're currently on the ground preparing for our tour. I'll let you know when we're ready for takeoff!"
	}

	if strings.Contains(lower, "altitude") || strings.Contains(lower, "high") {
		return fmt.Sprintf("We're currently cruising at %d feet. Perfect altitude for sightseeing!", int(math.Round(t.Altitude)))
	}

	if strings.Contains(lower, "speed") || strings.Contains(lower, "fast") {
		aircraft := t.Aircraft
		if aircraft == "" {
			aircraft = "aircraft"
		}
		return fmt.Sprintf("We're flying at %d knots - a comfortable cruising speed for our %s.", int(math.Round(t.Speed)), aircraft)
	}

	if strings.Contains(lower, "scared") || strings.Contains(lower, "safe") {
		return "No need to worry! We're flying in perfect conditions, and safety is always my top priority. Just relax and enjoy the views!"
	}

	if strings.Contains(lower, "land") || strings.Contains(lower, "long") {
		return "We've got about 20 more minutes of scenic flying before we head back. Still plenty to see!"
	}

	return "That's a great observation! The views from up here really are spectacular, aren't they?"
}
