package sydney

import (
	"encoding/json"
)

// Message authors.
const (
	AuthorUser = "user"
	AuthorBot  = "bot"
)

// Response is a decoded inbound data frame. Only the fields the relay reads are
// typed; everything else is kept verbatim in Extra.
type Response struct {
	Type         int    `json:"type"`
	InvocationID string `json:"invocationId,omitempty"`
	Item         *Item  `json:"item,omitempty"`
	Error        string `json:"error,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Item is the backend's answer for a turn.
type Item struct {
	Messages               []Message   `json:"messages"`
	FirstNewMessageIndex   *int        `json:"firstNewMessageIndex,omitempty"`
	ConversationID         string      `json:"conversationId,omitempty"`
	RequestID              string      `json:"requestId,omitempty"`
	ConversationExpiryTime string      `json:"conversationExpiryTime,omitempty"`
	Throttling             *Throttling `json:"throttling,omitempty"`
	Result                 *Result     `json:"result,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Message is one entry of the conversation transcript as seen by the backend.
type Message struct {
	Text               string              `json:"text,omitempty"`
	HiddenText         string              `json:"hiddenText,omitempty"`
	Author             string              `json:"author"`
	MessageType        string              `json:"messageType,omitempty"`
	MessageID          string              `json:"messageId,omitempty"`
	CreatedAt          string              `json:"createdAt,omitempty"`
	SourceAttributions []SourceAttribution `json:"sourceAttributions,omitempty"`
	SuggestedResponses []SuggestedResponse `json:"suggestedResponses,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// SourceAttribution is a cited web source.
type SourceAttribution struct {
	ProviderDisplayName string `json:"providerDisplayName"`
	SeeMoreURL          string `json:"seeMoreUrl"`
	SearchQuery         string `json:"searchQuery,omitempty"`
}

// SuggestedResponse is a follow-up prompt offered by the backend.
type SuggestedResponse struct {
	Text        string `json:"text"`
	Author      string `json:"author,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
	MessageType string `json:"messageType,omitempty"`
}

// Throttling reports the per-conversation message quota.
type Throttling struct {
	NumUserMessagesInConversation    int `json:"numUserMessagesInConversation"`
	MaxNumUserMessagesInConversation int `json:"maxNumUserMessagesInConversation"`
}

// Result is the backend's verdict on the turn.
type Result struct {
	Value          string `json:"value"`
	Message        string `json:"message,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty"`
}

// Terminal reports whether the frame carries the complete answer for a turn.
func (r *Response) Terminal() bool {
	return r.Item != nil && r.Item.FirstNewMessageIndex != nil
}

// Exhausted reports whether the quota is fully consumed. A response without a
// throttling block, or one that reports no maximum, is treated as not
// exhausted.
func (t *Throttling) Exhausted() bool {
	if t == nil || t.MaxNumUserMessagesInConversation <= 0 {
		return false
	}
	return t.NumUserMessagesInConversation >= t.MaxNumUserMessagesInConversation
}

// Remaining returns the number of turns left, never negative.
func (t *Throttling) Remaining() int {
	if t == nil {
		return 0
	}
	if n := t.MaxNumUserMessagesInConversation - t.NumUserMessagesInConversation; n > 0 {
		return n
	}
	return 0
}

type responseAlias Response

func (r *Response) UnmarshalJSON(data []byte) error {
	var a responseAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := collectExtra(data, "type", "invocationId", "item", "error")
	if err != nil {
		return err
	}
	*r = Response(a)
	r.Extra = extra
	return nil
}

type itemAlias Item

func (i *Item) UnmarshalJSON(data []byte) error {
	var a itemAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := collectExtra(data, "messages", "firstNewMessageIndex", "conversationId",
		"requestId", "conversationExpiryTime", "throttling", "result")
	if err != nil {
		return err
	}
	*i = Item(a)
	i.Extra = extra
	return nil
}

type messageAlias Message

func (m *Message) UnmarshalJSON(data []byte) error {
	var a messageAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := collectExtra(data, "text", "hiddenText", "author", "messageType", "messageId",
		"createdAt", "sourceAttributions", "suggestedResponses")
	if err != nil {
		return err
	}
	*m = Message(a)
	m.Extra = extra
	return nil
}

// UnmarshalJSON accepts both the observed maxNumUserMessagesInConversation key
// and the shorter maxUserMessagesInConversation spelling.
func (t *Throttling) UnmarshalJSON(data []byte) error {
	var raw struct {
		Num    int  `json:"numUserMessagesInConversation"`
		MaxNum *int `json:"maxNumUserMessagesInConversation"`
		Max    *int `json:"maxUserMessagesInConversation"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.NumUserMessagesInConversation = raw.Num
	switch {
	case raw.MaxNum != nil:
		t.MaxNumUserMessagesInConversation = *raw.MaxNum
	case raw.Max != nil:
		t.MaxNumUserMessagesInConversation = *raw.Max
	}
	return nil
}

// collectExtra returns the members of a JSON object that are not in known, or
// nil when there are none.
func collectExtra(data []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}
