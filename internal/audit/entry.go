package audit

// Decisions recorded for a tool call.
const (
	DecisionAllow  = "allow"
	DecisionReject = "reject"
	DecisionError  = "error"
)

// Entry is one line in the hash-chained JSONL audit log. It describes a
// single tool call: who made it, what it targeted and how it ended.
// Fields are a flat struct so json.Marshal output is deterministic.
type Entry struct {
	Timestamp  string `json:"ts"`
	RequestID  string `json:"request_id"`
	TokenLabel string `json:"token_label"`
	Service    string `json:"service"`
	Tool       string `json:"tool"`
	// Target is a short description of what the call touched, such as
	// "acme/widgets" or a SQL digest. It never holds raw query text.
	Target     string `json:"target"`
	Decision   string `json:"decision"`
	Kind       string `json:"kind,omitempty"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	PrevHash   string `json:"prev_hash"`
}
