package event

// SegmentType enumerates the well-known segment kinds a Message can carry.
// Adapters that don't support a given type downstream are expected to drop
// or flatten it rather than error (see skip_if_unsupported in the node
// library).
type SegmentType string

const (
	SegText     SegmentType = "text"
	SegImage    SegmentType = "image"
	SegAt       SegmentType = "at"
	SegFace     SegmentType = "face"
	SegReply    SegmentType = "reply"
	SegVideo    SegmentType = "video"
	SegVoice    SegmentType = "voice"
	SegFile     SegmentType = "file"
	SegMarkdown SegmentType = "markdown"
	SegArk      SegmentType = "ark"
	SegKeyboard SegmentType = "keyboard"
)

// Segment is a single tagged fragment of a Message, mirroring the
// {type, data} envelope protocols like OneBot use on the wire.
type Segment struct {
	Type SegmentType
	Data map[string]any
}

// IsText reports whether this segment carries extractable plain text.
func (s Segment) IsText() bool {
	return s.Type == SegText
}

func Text(text string) Segment {
	return Segment{Type: SegText, Data: map[string]any{"text": text}}
}

func Image(url string) Segment {
	return Segment{Type: SegImage, Data: map[string]any{"url": url}}
}

func At(userID string) Segment {
	return Segment{Type: SegAt, Data: map[string]any{"qq": userID}}
}

func Reply(messageID string) Segment {
	return Segment{Type: SegReply, Data: map[string]any{"id": messageID}}
}

// Message is an ordered sequence of segments, the protocol-neutral
// equivalent of a chat message body.
type Message []Segment

// NewMessage builds a Message from a plain string, a Segment, or a mix of
// both, auto-wrapping bare strings as text segments — the same convenience
// the adapters' underlying message classes offer.
func NewMessage(parts ...any) Message {
	m := make(Message, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			m = append(m, Text(v))
		case Segment:
			m = append(m, v)
		case Message:
			m = append(m, v...)
		}
	}
	return m
}

// Append adds segments to the message, auto-wrapping bare strings.
func (m Message) Append(parts ...any) Message {
	return append(m, NewMessage(parts...)...)
}

// ExtractPlainText joins the text of every text segment in order, ignoring
// all other segment types.
func (m Message) ExtractPlainText() string {
	var out string
	for _, seg := range m {
		if !seg.IsText() {
			continue
		}
		if t, ok := seg.Data["text"].(string); ok {
			out += t
		}
	}
	return out
}

// Concat concatenates two messages into a new one without mutating either.
func Concat(a, b Message) Message {
	out := make(Message, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
