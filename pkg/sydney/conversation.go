package sydney

import "time"

// Conversation is the resumable identity and quota state of a chat with the backend.
//
// A Conversation is fresh when CurrentIndex is zero and active once a turn has
// succeeded, at which point Expiry is set as well. The identity triple is issued
// by the create call and never changes afterwards.
type Conversation struct {
	ConversationID        string `json:"conversationId"`
	ClientID              string `json:"clientId"`
	ConversationSignature string `json:"conversationSignature"`

	// CurrentIndex is the number of user turns already consumed.
	CurrentIndex int `json:"currentIndex,omitempty"`

	// Expiry is the absolute epoch second after which the session is gone.
	Expiry int64 `json:"expiry,omitempty"`
}

// CreateResponse is the body returned by the conversation create call.
type CreateResponse struct {
	ConversationID        string        `json:"conversationId"`
	ClientID              string        `json:"clientId"`
	ConversationSignature string        `json:"conversationSignature"`
	Result                *CreateResult `json:"result"`
}

// CreateResult reports whether the create call succeeded.
type CreateResult struct {
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ResultSuccess is the result value of a successful create call.
const ResultSuccess = "Success"

// Fresh reports whether no turn has been consumed in this conversation yet.
func (c *Conversation) Fresh() bool {
	return c.CurrentIndex == 0
}

// Expired reports whether the conversation must be treated as gone at now.
func (c *Conversation) Expired(now time.Time) bool {
	return c.Expiry != 0 && now.Unix() >= c.Expiry
}

// ExpiresAt returns Expiry as a time, or the zero time when it is unset.
func (c *Conversation) ExpiresAt() time.Time {
	if c.Expiry == 0 {
		return time.Time{}
	}
	return time.Unix(c.Expiry, 0)
}
