package pilot

import (
	"encoding/json"
	"errors"
)

// ErrNoReplyText is returned when none of the known payload shapes carries
// generated text. A raw upstream payload is never surfaced to the passenger.
var ErrNoReplyText = errors.New("no reply text in flow response")

// The upstream flow's response shape varies across versions, so the envelope
// models every location generated text has been observed in.

type flowEnvelope struct {
	Outputs []flowRun `json:"outputs"`
	Result  string    `json:"result"`
	Message string    `json:"message"`
}

type flowRun struct {
	Outputs []flowComponent `json:"outputs"`
}

type flowComponent struct {
	Messages []flowChatMessage `json:"messages"`
	Results  *flowResults      `json:"results"`
}

type flowChatMessage struct {
	Message string `json:"message"`
}

type flowResults struct {
	Message *flowResultMessage `json:"message"`
	Text    string             `json:"text"`
	Result  string             `json:"result"`
}

// flowResultMessage appears either as an object or as a bare string
// depending on the flow version.
type flowResultMessage struct {
	Text string
	Data struct {
		Text string `json:"text"`
	}
}

func (m *flowResultMessage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.Text = s
		return nil
	}
	var obj struct {
		Text string `json:"text"`
		Data struct {
			Text string `json:"text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	m.Text = obj.Text
	m.Data = obj.Data
	return nil
}

// extractor inspects one known payload shape and reports a match.
type extractor func(*flowEnvelope) (string, bool)

// extractors are tried in order; earlier shapes are more authoritative.
var extractors = []extractor{
	fromComponentMessages,
	fromResultMessageText,
	fromResultMessageDataText,
	fromResultsText,
	fromResultsResult,
	fromTopLevelResult,
	fromTopLevelMessage,
}

// ExtractText searches the plausible shapes of a flow response for the
// generated text, in a fixed precedence order.
func ExtractText(env *flowEnvelope) (string, bool) {
	if env == nil {
		return "", false
	}
	for _, extract := range extractors {
		if text, ok := extract(env); ok {
			return text, true
		}
	}
	return "", false
}

// eachComponent walks the nested outputs arrays until visit reports a match.
func eachComponent(env *flowEnvelope, visit func(*flowComponent) (string, bool)) (string, bool) {
	for i := range env.Outputs {
		for j := range env.Outputs[i].Outputs {
			if text, ok := visit(&env.Outputs[i].Outputs[j]); ok {
				return text, true
			}
		}
	}
	return "", false
}

func fromComponentMessages(env *flowEnvelope) (string, bool) {
	return eachComponent(env, func(c *flowComponent) (string, bool) {
		if len(c.Messages) > 0 && c.Messages[0].Message != "" {
			return c.Messages[0].Message, true
		}
		return "", false
	})
}

func fromResultMessageText(env *flowEnvelope) (string, bool) {
	return eachComponent(env, func(c *flowComponent) (string, bool) {
		if c.Results != nil && c.Results.Message != nil && c.Results.Message.Text != "" {
			return c.Results.Message.Text, true
		}
		return "", false
	})
}

func fromResultMessageDataText(env *flowEnvelope) (string, bool) {
	return eachComponent(env, func(c *flowComponent) (string, bool) {
		if c.Results != nil && c.Results.Message != nil && c.Results.Message.Data.Text != "" {
			return c.Results.Message.Data.Text, true
		}
		return "", false
	})
}

func fromResultsText(env *flowEnvelope) (string, bool) {
	return eachComponent(env, func(c *flowComponent) (string, bool) {
		if c.Results != nil && c.Results.Text != "" {
			return c.Results.Text, true
		}
		return "", false
	})
}

func fromResultsResult(env *flowEnvelope) (string, bool) {
	return eachComponent(env, func(c *flowComponent) (string, bool) {
		if c.Results != nil && c.Results.Result != "" {
			return c.Results.Result, true
		}
		return "", false
	})
}

func fromTopLevelResult(env *flowEnvelope) (string, bool) {
	if env.Result != "" {
		return env.Result, true
	}
	return "", false
}

func fromTopLevelMessage(env *flowEnvelope) (string, bool) {
	if env.Message != "" {
		return env.Message, true
	}
	return "", false
}
