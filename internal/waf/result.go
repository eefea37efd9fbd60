package waf

// Action values carried in an analyze verdict.
const (
	ActionAllow = "allow"
	ActionBlock = "block"
)

// Verdict is the engine's answer to an analyze request. When any step of the
// operation fails, the client synthesizes an allow verdict carrying the
// failure reason in Error; callers never see an error for engine
// unavailability.
type Verdict struct {
	Action     string
	Score      int
	Categories []string
	Message    string
	Error      string

	// Raw is the decoded response body verbatim; nil on fail-open.
	Raw map[string]any
}

// Blocked reports whether enforcement should reject the request. Anything
// other than an explicit block action means allow.
func (v Verdict) Blocked() bool {
	return v.Action == ActionBlock
}

func verdictFromBody(body map[string]any) Verdict {
	v := Verdict{Action: ActionAllow, Raw: body}
	if s, ok := body["action"].(string); ok && s != "" {
		v.Action = s
	}
	if n, ok := body["score"].(float64); ok {
		v.Score = int(n)
	}
	if items, ok := body["categories"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok {
				v.Categories = append(v.Categories, s)
			}
		}
	}
	if s, ok := body["message"].(string); ok {
		v.Message = s
	}
	if s, ok := body["error"].(string); ok {
		v.Error = s
	}
	return v
}

func failOpenVerdict(reason string) Verdict {
	return Verdict{Action: ActionAllow, Error: reason}
}

// BlockStatus is the answer to a block-list lookup. Failures yield
// not-blocked with the reason in Error.
type BlockStatus struct {
	Blocked bool
	Error   string
}

func blockStatusFromBody(body map[string]any) BlockStatus {
	st := BlockStatus{}
	if b, ok := body["blocked"].(bool); ok {
		st.Blocked = b
	}
	if s, ok := body["error"].(string); ok {
		st.Error = s
	}
	return st
}
