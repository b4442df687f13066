package sydney

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Frame type discriminators used by the ChatHub protocol.
const (
	TypeInvocation = 1
	TypeStreamItem = 2
	TypeCompletion = 3
	TypePing       = 6
	TypeClose      = 7
)

// Message types sent with the user message.
const (
	MessageTypeChat        = "Chat"
	MessageTypeSearchQuery = "SearchQuery"
	MessageTypeContext     = "Context"
)

// Handshake is the first frame sent on a new connection.
type Handshake struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// DefaultHandshake negotiates the JSON sub-protocol, version 1.
var DefaultHandshake = Handshake{Protocol: "json", Version: 1}

// ChatRequest represents one outbound chat turn.
type ChatRequest struct {
	Arguments    []ChatArgument `json:"arguments"`
	InvocationID string         `json:"invocationId"`
	Target       string         `json:"target"`
	Type         int            `json:"type"`
}

// ChatArgument carries the turn payload and session identity.
type ChatArgument struct {
	Source                string           `json:"source"`
	OptionsSets           []string         `json:"optionsSets"`
	SliceIDs              []string         `json:"sliceIds"`
	TraceID               string           `json:"traceId"`
	IsStartOfSession      bool             `json:"isStartOfSession"`
	Message               UserMessage      `json:"message"`
	ConversationSignature string           `json:"conversationSignature"`
	Participant           Participant      `json:"participant"`
	ConversationID        string           `json:"conversationId"`
	PreviousMessages      []ContextMessage `json:"previousMessages,omitempty"`
}

// UserMessage is the caller's input for the turn.
type UserMessage struct {
	Author      string `json:"author"`
	Text        string `json:"text"`
	MessageType string `json:"messageType"`
}

// Participant identifies the client in the conversation.
type Participant struct {
	ID string `json:"id"`
}

// ContextMessage is the synthetic system-instruction message attached to the
// first turn of a session.
type ContextMessage struct {
	Author      string `json:"author"`
	Description string `json:"description"`
	ContextType string `json:"contextType"`
	MessageType string `json:"messageType"`
	MessageID   string `json:"messageId"`
}

const contextMessageID = "discover-web--page-ping-mriduna-----"

// NewChatRequest builds the request frame for a turn in conv.
//
// The invocation id equals the number of turns already consumed so the backend
// can validate ordering. A system prompt is only attached when the session is
// starting.
func NewChatRequest(conv *Conversation, style Style, systemPrompt, message string) *ChatRequest {
	start := conv.Fresh()

	msgType := MessageTypeChat
	if start {
		msgType = MessageTypeSearchQuery
	}

	arg := ChatArgument{
		Source:           "cib",
		OptionsSets:      OptionsSets(style),
		SliceIDs:         SliceIDs(),
		TraceID:          NewTraceID(),
		IsStartOfSession: start,
		Message: UserMessage{
			Author:      AuthorUser,
			Text:        message,
			MessageType: msgType,
		},
		ConversationSignature: conv.ConversationSignature,
		Participant:           Participant{ID: conv.ClientID},
		ConversationID:        conv.ConversationID,
	}

	if start && strings.TrimSpace(systemPrompt) != "" {
		arg.PreviousMessages = []ContextMessage{{
			Author:      AuthorUser,
			Description: systemPrompt,
			ContextType: "WebPage",
			MessageType: MessageTypeContext,
			MessageID:   contextMessageID,
		}}
	}

	return &ChatRequest{
		Arguments:    []ChatArgument{arg},
		InvocationID: strconv.Itoa(conv.CurrentIndex),
		Target:       "chat",
		Type:         4,
	}
}

// NewTraceID returns 32 lowercase hex characters.
func NewTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
