package sydney

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NoResponse is the body used when the answer carries no text at all.
const NoResponse = "No response."

var citationPattern = regexp.MustCompile(`\[\^(\d+)\^\]`)

var superscripts = map[int]string{
	1: "¹", 2: "²", 3: "³", 4: "⁴", 5: "⁵", 6: "⁶", 7: "⁷", 8: "⁸", 9: "⁹",
}

// Answer picks the message that answers this turn: the latest bot message
// without an internal message type. Older protocol revisions are covered by
// falling back to the latest bot message of any type and then to the last
// message of the transcript.
func (r *Response) Answer() *Message {
	if r == nil || r.Item == nil || len(r.Item.Messages) == 0 {
		return nil
	}
	msgs := r.Item.Messages

	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Author == AuthorBot && (msgs[i].MessageType == "" || msgs[i].MessageType == MessageTypeChat) {
			return &msgs[i]
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Author == AuthorBot {
			return &msgs[i]
		}
	}
	return &msgs[len(msgs)-1]
}

// ExtractBody derives the user-facing text of the answer, with citation
// markers rendered as superscripts and a numbered Sources section appended.
func ExtractBody(r *Response) string {
	reply := r.Answer()
	if reply == nil {
		return NoResponse
	}

	body := reply.Text
	if body == "" {
		body = reply.HiddenText
	}
	if body == "" {
		body = NoResponse
	}
	body = strings.TrimSpace(ReplaceCitations(body))

	if len(reply.SourceAttributions) > 0 {
		var b strings.Builder
		b.WriteString(body)
		b.WriteString("\n\nSources:")
		for i, src := range reply.SourceAttributions {
			fmt.Fprintf(&b, "\n%d. [%s](%s)", i+1, src.ProviderDisplayName, src.SeeMoreURL)
		}
		body = b.String()
	}
	return body
}

// ExtractSuggestions returns the follow-up suggestions of the answer in order.
func ExtractSuggestions(r *Response) []string {
	reply := r.Answer()
	if reply == nil || len(reply.SuggestedResponses) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(reply.SuggestedResponses))
	for _, s := range reply.SuggestedResponses {
		out = append(out, s.Text)
	}
	return out
}

// ReplaceCitations replaces [^n^] markers for n in 1..9 with superscript
// digits. Other numbers are left untouched.
func ReplaceCitations(s string) string {
	return citationPattern.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.Atoi(citationPattern.FindStringSubmatch(m)[1])
		if err != nil {
			return m
		}
		if sup, ok := superscripts[n]; ok {
			return sup
		}
		return m
	})
}
