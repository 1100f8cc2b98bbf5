package chat

// ReplyKind tells a real completion apart from the canned fallback.
type ReplyKind int

const (
	ReplyOK ReplyKind = iota
	ReplyFallback
)

func (k ReplyKind) String() string {
	if k == ReplyFallback {
		return "fallback"
	}
	return "ok"
}

// Reply is the outcome of one turn. Text is never empty; Reason is set only
// for fallbacks.
type Reply struct {
	Text   string
	Kind   ReplyKind
	Reason error
}

func (r Reply) IsFallback() bool {
	return r.Kind == ReplyFallback
}
