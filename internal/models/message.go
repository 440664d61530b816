package models

import (
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ContentKind tags the variant carried by a message.
type ContentKind string

const (
	ContentText        ContentKind = "text"
	ContentMedia       ContentKind = "media"
	ContentInteractive ContentKind = "interactive"
	ContentPoll        ContentKind = "poll"
	ContentUnsupported ContentKind = "unsupported"
)

// Content is the tagged message body. Exactly the fields relevant to Kind are
// populated.
type Content struct {
	Kind ContentKind `json:"kind"`

	// Text is the plain body for text messages.
	Text string `json:"text,omitempty"`

	// Caption and MediaType describe media messages.
	Caption   string `json:"caption,omitempty"`
	MediaType string `json:"mediaType,omitempty"`

	Interactive *Interactive `json:"interactive,omitempty"`
	Poll        *Poll        `json:"poll,omitempty"`

	// RawType keeps the host's type tag for unsupported content.
	RawType string `json:"rawType,omitempty"`
}

// Interactive is a button or list message.
type Interactive struct {
	Header  string   `json:"header,omitempty"`
	Body    string   `json:"body,omitempty"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []string `json:"buttons,omitempty"`
}

// Poll is a poll message with its options.
type Poll struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// RawContent is the loosely shaped body as delivered by the host. It is only
// inspected by ResolveContent.
type RawContent struct {
	Type        string
	Body        string
	Caption     string
	HasMedia    bool
	MediaType   string
	Interactive *Interactive
	Poll        *Poll
}

// ResolveContent picks the content variant once, at ingestion.
func ResolveContent(raw RawContent) Content {
	switch {
	case raw.Poll != nil:
		return Content{Kind: ContentPoll, Poll: raw.Poll}
	case raw.Interactive != nil:
		return Content{Kind: ContentInteractive, Interactive: raw.Interactive}
	case raw.HasMedia || strings.TrimSpace(raw.MediaType) != "":
		caption := strings.TrimSpace(raw.Caption)
		if caption == "" {
			caption = strings.TrimSpace(raw.Body)
		}
		return Content{Kind: ContentMedia, Caption: caption, MediaType: strings.TrimSpace(raw.MediaType)}
	case strings.TrimSpace(raw.Body) != "":
		return Content{Kind: ContentText, Text: raw.Body}
	default:
		return Content{Kind: ContentUnsupported, RawType: strings.TrimSpace(raw.Type)}
	}
}

// Preview renders a one-line summary used in conversation lists.
func (c Content) Preview() string {
	switch c.Kind {
	case ContentText:
		return firstLine(c.Text)
	case ContentMedia:
		if c.Caption != "" {
			return "[media] " + firstLine(c.Caption)
		}
		return "[media]"
	case ContentInteractive:
		if c.Interactive != nil && c.Interactive.Body != "" {
			return "[interactive] " + firstLine(c.Interactive.Body)
		}
		return "[interactive]"
	case ContentPoll:
		if c.Poll != nil {
			return "[poll] " + firstLine(c.Poll.Question)
		}
		return "[poll]"
	default:
		return "[unsupported]"
	}
}

// Message is an immutable chat message as received from the host.
type Message struct {
	ID         string               `json:"id"`
	FromSelf   bool                 `json:"fromSelf"`
	Content    Content              `json:"content"`
	Timestamp  fn.Option[time.Time] `json:"-"`
	IsAI       bool                 `json:"isAI,omitempty"`
	IsFollowUp bool                 `json:"isFollowUp,omitempty"`
}

// At returns the normalized instant, or the zero time when it is invalid.
func (m Message) At() time.Time {
	return m.Timestamp.UnwrapOr(time.Time{})
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
