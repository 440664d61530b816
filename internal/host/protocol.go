// Package host talks to the privileged host process over newline-delimited
// JSON on a unix socket or TCP connection.
package host

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Channel names a request/response call.
type Channel string

const (
	ChannelGetChats                 Channel = "get-chats"
	ChannelGetChatMessages          Channel = "get-chat-messages"
	ChannelGetConnectionStatus      Channel = "get-connection-status"
	ChannelGetAllHumanInterventions Channel = "get-all-human-interventions"
	ChannelGetInterventionDetails   Channel = "get-human-intervention-details"
	ChannelToggleHumanIntervention  Channel = "toggle-human-intervention"
	ChannelGetAIModeStatus          Channel = "get-ai-mode-status"
	ChannelSetAIMode                Channel = "set-ai-mode"
	ChannelGetActiveFollowUps       Channel = "get-active-follow-ups"
	ChannelGetFollowUpCheckInfo     Channel = "get-follow-up-check-info"
	ChannelCheckFollowUpNow         Channel = "check-follow-up-now"
	ChannelCancelFollowUp           Channel = "cancel-follow-up"
	ChannelSendFollowUpNow          Channel = "send-follow-up-now"
	ChannelSendMessage              Channel = "send-message"
	ChannelClearChatConversation    Channel = "clear-chat-conversation"
	ChannelCancelAllFollowUps       Channel = "cancel-all-follow-ups"
)

// Channels lists every call the host must answer.
var Channels = []Channel{
	ChannelGetChats,
	ChannelGetChatMessages,
	ChannelGetConnectionStatus,
	ChannelGetAllHumanInterventions,
	ChannelGetInterventionDetails,
	ChannelToggleHumanIntervention,
	ChannelGetAIModeStatus,
	ChannelSetAIMode,
	ChannelGetActiveFollowUps,
	ChannelGetFollowUpCheckInfo,
	ChannelCheckFollowUpNow,
	ChannelCancelFollowUp,
	ChannelSendFollowUpNow,
	ChannelSendMessage,
	ChannelClearChatConversation,
	ChannelCancelAllFollowUps,
}

// MaxLineSize bounds a single protocol line.
const MaxLineSize = 4 << 20

// Request is a client call.
type Request struct {
	ID      string          `json:"id"`
	Channel Channel         `json:"channel"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// WireError is a protocol-level failure, such as an unknown channel.
type WireError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Frame is any line sent by the host: a response when ID is set, a push
// event when Event is set.
type Frame struct {
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is the part of every result callers branch on.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Failure picks the most specific host-provided failure text.
func (e Envelope) Failure() string {
	for _, s := range []string{e.Error, e.Message, e.Reason} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "request failed"
}

// ChatArgs addresses one conversation.
type ChatArgs struct {
	ChatID string `json:"chatId"`
}

// MessagesArgs requests a conversation's history.
type MessagesArgs struct {
	ChatID string `json:"chatId"`
	Limit  int    `json:"limit,omitempty"`
}

// FollowUpArgs addresses one follow-up.
type FollowUpArgs struct {
	ChatID     string `json:"chatId"`
	FollowUpID string `json:"followUpId"`
}

// ToggleInterventionArgs carries the displayed state as a precondition.
type ToggleInterventionArgs struct {
	ChatID          string `json:"chatId"`
	CurrentlyActive bool   `json:"currentlyActive"`
}

// SetAIModeArgs requests an AI mode change.
type SetAIModeArgs struct {
	ChatID string `json:"chatId"`
	Active bool   `json:"active"`
}

// SendMessageArgs sends a text message.
type SendMessageArgs struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// WireLastMessage is the preview embedded in a chat listing.
type WireLastMessage struct {
	Body      string `json:"body,omitempty"`
	FromMe    bool   `json:"fromMe,omitempty"`
	Timestamp any    `json:"timestamp,omitempty"`
}

// WireChat is one entry of get-chats.
type WireChat struct {
	ID          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	IsGroup     bool             `json:"isGroup,omitempty"`
	LastMessage *WireLastMessage `json:"lastMessage,omitempty"`
	Timestamp   any              `json:"timestamp,omitempty"`
}

// WireInteractive is an interactive message body.
type WireInteractive struct {
	Header  string   `json:"header,omitempty"`
	Body    string   `json:"body,omitempty"`
	Footer  string   `json:"footer,omitempty"`
	Buttons []string `json:"buttons,omitempty"`
}

// WirePoll is a poll message body.
type WirePoll struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// WireMessage is a message as the host serializes it. The timestamp may sit
// in any of several fields and in seconds or milliseconds.
type WireMessage struct {
	ID               string           `json:"id"`
	FromMe           bool             `json:"fromMe,omitempty"`
	Type             string           `json:"type,omitempty"`
	Body             string           `json:"body,omitempty"`
	Caption          string           `json:"caption,omitempty"`
	HasMedia         bool             `json:"hasMedia,omitempty"`
	MimeType         string           `json:"mimetype,omitempty"`
	Interactive      *WireInteractive `json:"interactive,omitempty"`
	Poll             *WirePoll        `json:"poll,omitempty"`
	Timestamp        any              `json:"timestamp,omitempty"`
	MessageTimestamp any              `json:"messageTimestamp,omitempty"`
	Time             any              `json:"t,omitempty"`
	IsAI             bool             `json:"isAI,omitempty"`
	IsFollowUp       bool             `json:"isFollowUp,omitempty"`
}

// WireIntervention is the host's intervention detail.
type WireIntervention struct {
	ChatID      string `json:"chatId,omitempty"`
	Active      bool   `json:"active"`
	IsManual    bool   `json:"isManual"`
	RemainingMs int64  `json:"remainingMs,omitempty"`
}

// WireFollowUp is one pending follow-up.
type WireFollowUp struct {
	ID            string `json:"id"`
	ChatID        string `json:"chatId"`
	ScheduledTime any    `json:"scheduledTime"`
	Message       string `json:"message,omitempty"`
	Sequence      int    `json:"sequence,omitempty"`
	Total         int    `json:"total,omitempty"`
}

// ChatsResult answers get-chats.
type ChatsResult struct {
	Envelope
	Chats []WireChat `json:"chats"`
}

// MessagesResult answers get-chat-messages.
type MessagesResult struct {
	Envelope
	Messages []WireMessage `json:"messages"`
}

// StatusResult answers get-connection-status.
type StatusResult struct {
	Envelope
	Status string `json:"status"`
}

// InterventionsResult answers get-all-human-interventions.
type InterventionsResult struct {
	Envelope
	Interventions []WireIntervention `json:"interventions"`
}

// InterventionResult answers get-human-intervention-details and
// toggle-human-intervention.
type InterventionResult struct {
	Envelope
	Details *WireIntervention `json:"details,omitempty"`
}

// AIModeResult answers get-ai-mode-status and set-ai-mode.
type AIModeResult struct {
	Envelope
	Active    bool `json:"active"`
	IsGroup   bool `json:"isGroup"`
	CanToggle bool `json:"canToggle"`
}

// FollowUpsResult answers get-active-follow-ups.
type FollowUpsResult struct {
	Envelope
	FollowUps []WireFollowUp `json:"followUps"`
}

// CheckInfoResult answers get-follow-up-check-info.
type CheckInfoResult struct {
	Envelope
	Scheduled bool `json:"scheduled"`
	CheckTime any  `json:"checkTime,omitempty"`
}

// CheckNowResult answers check-follow-up-now.
type CheckNowResult struct {
	Envelope
	HasFollowUp bool `json:"hasFollowUp"`
}

// SendMessageResult answers send-message.
type SendMessageResult struct {
	Envelope
	MessageID string `json:"messageId,omitempty"`
}

// CancelAllResult answers cancel-all-follow-ups.
type CancelAllResult struct {
	Envelope
	Cancelled int `json:"cancelled"`
}

// NewMessagePayload is the new-message push.
type NewMessagePayload struct {
	ConversationID string       `json:"conversationId,omitempty"`
	ChatID         string       `json:"chatId,omitempty"`
	Message        *WireMessage `json:"message,omitempty"`
}

// StatusPayload is the status-update push.
type StatusPayload struct {
	Status         string `json:"status"`
	ConversationID string `json:"conversationId,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// CheckResultPayload is the follow-up-check-result push.
type CheckResultPayload struct {
	ConversationID   string `json:"conversationId,omitempty"`
	ChatID           string `json:"chatId,omitempty"`
	Success          bool   `json:"success"`
	HasFollowUp      bool   `json:"hasFollowUp"`
	Message          string `json:"message,omitempty"`
	Reason           string `json:"reason,omitempty"`
	IsAutomaticCheck bool   `json:"isAutomaticCheck"`
}

// conversationKey picks the conversation identifier of a push. The chat id
// is what every call is addressed by.
func conversationKey(chatID, conversationID string) string {
	if id := strings.TrimSpace(chatID); id != "" {
		return id
	}
	return strings.TrimSpace(conversationID)
}

// WriteJSONLine writes payload as one line and flushes.
func WriteJSONLine(writer *bufio.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		return err
	}
	if err := writer.WriteByte('\n'); err != nil {
		return err
	}
	return writer.Flush()
}

// ReadLine reads one trimmed line, rejecting lines over MaxLineSize.
func ReadLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return bytes.TrimSpace(line), nil
		}
		return nil, err
	}
	if len(line) > MaxLineSize {
		return nil, fmt.Errorf("host line too long")
	}
	return bytes.TrimSpace(line), nil
}

// decodeJSON unmarshals keeping numbers as json.Number so timestamps keep
// their precision.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// formatWireErr renders a protocol error.
func formatWireErr(err *WireError) string {
	if err == nil {
		return "unknown error"
	}
	message := strings.TrimSpace(err.Message)
	if message == "" {
		message = strings.TrimSpace(err.Code)
	}
	if message == "" {
		message = "unknown error"
	}
	if strings.TrimSpace(err.Code) == "" || strings.Contains(message, err.Code) {
		return message
	}
	return fmt.Sprintf("%s (%s)", message, err.Code)
}
