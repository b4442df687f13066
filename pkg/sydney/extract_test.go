package sydney_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chathub/pkg/sydney"
)

func responseWith(msgs ...sydney.Message) *sydney.Response {
	idx := 1
	return &sydney.Response{
		Type: sydney.TypeStreamItem,
		Item: &sydney.Item{Messages: msgs, FirstNewMessageIndex: &idx},
	}
}

var _ = Describe("Response extraction", func() {
	Describe("ReplaceCitations", func() {
		It("replaces markers 1-9 with superscripts", func() {
			out := sydney.ReplaceCitations("See [^3^] and [^9^]")

			Expect(out).To(ContainSubstring("See ³ and ⁹"))
			Expect(out).NotTo(ContainSubstring("[^"))
		})

		It("is idempotent", func() {
			once := sydney.ReplaceCitations("a[^1^] b[^2^] c[^12^]")

			Expect(sydney.ReplaceCitations(once)).To(Equal(once))
		})

		It("leaves unknown citation numbers literal", func() {
			Expect(sydney.ReplaceCitations("x [^0^] y [^10^]")).To(Equal("x [^0^] y [^10^]"))
		})
	})

	Describe("Answer", func() {
		It("picks the latest bot message without an internal type", func() {
			resp := responseWith(
				sydney.Message{Author: "user", Text: "question"},
				sydney.Message{Author: "bot", Text: "searching", MessageType: "InternalSearchQuery"},
				sydney.Message{Author: "bot", Text: "the answer"},
				sydney.Message{Author: "bot", Text: "done", MessageType: "InternalLoaderMessage"},
			)

			Expect(resp.Answer().Text).To(Equal("the answer"))
		})

		It("falls back to the latest bot message", func() {
			resp := responseWith(
				sydney.Message{Author: "user", Text: "question"},
				sydney.Message{Author: "bot", Text: "disengaged", MessageType: "Disengaged"},
			)

			Expect(resp.Answer().Text).To(Equal("disengaged"))
		})

		It("falls back to the last message when no bot message exists", func() {
			resp := responseWith(sydney.Message{Author: "user", Text: "echo"})

			Expect(resp.Answer().Text).To(Equal("echo"))
		})

		It("returns nil for an empty transcript", func() {
			Expect((&sydney.Response{}).Answer()).To(BeNil())
		})
	})

	Describe("ExtractBody", func() {
		It("prefers the primary text", func() {
			resp := responseWith(sydney.Message{Author: "bot", Text: "primary", HiddenText: "hidden"})

			Expect(sydney.ExtractBody(resp)).To(Equal("primary"))
		})

		It("falls back to hidden text", func() {
			resp := responseWith(sydney.Message{Author: "bot", HiddenText: "hidden"})

			Expect(sydney.ExtractBody(resp)).To(Equal("hidden"))
		})

		It("falls back to the no-response literal", func() {
			Expect(sydney.ExtractBody(responseWith(sydney.Message{Author: "bot"}))).To(Equal(sydney.NoResponse))
			Expect(sydney.ExtractBody(&sydney.Response{})).To(Equal(sydney.NoResponse))
		})

		It("appends numbered sources in order", func() {
			resp := responseWith(sydney.Message{
				Author: "bot",
				Text:   "Go is fast[^1^].",
				SourceAttributions: []sydney.SourceAttribution{
					{ProviderDisplayName: "go.dev", SeeMoreURL: "https://go.dev"},
					{ProviderDisplayName: "Wikipedia", SeeMoreURL: "https://en.wikipedia.org/wiki/Go"},
				},
			})

			Expect(sydney.ExtractBody(resp)).To(Equal(
				"Go is fast¹.\n\nSources:\n1. [go.dev](https://go.dev)\n2. [Wikipedia](https://en.wikipedia.org/wiki/Go)",
			))
		})
	})

	Describe("ExtractSuggestions", func() {
		It("maps suggested responses to their text in order", func() {
			resp := responseWith(sydney.Message{
				Author: "bot",
				Text:   "hi",
				SuggestedResponses: []sydney.SuggestedResponse{
					{Text: "Tell me more"}, {Text: "Why?"},
				},
			})

			Expect(sydney.ExtractSuggestions(resp)).To(Equal([]string{"Tell me more", "Why?"}))
		})

		It("yields an empty sequence when there are none", func() {
			resp := responseWith(sydney.Message{Author: "bot", Text: "hi"})

			Expect(sydney.ExtractSuggestions(resp)).NotTo(BeNil())
			Expect(sydney.ExtractSuggestions(resp)).To(BeEmpty())
		})
	})

	Describe("decoding a terminal frame", func() {
		raw := `{"type":2,"invocationId":"0","item":{
			"messages":[
				{"text":"hello","author":"user","nlu":{"scoredClassification":{}}},
				{"text":"Hi there[^1^]","author":"bot","offense":"None",
				 "sourceAttributions":[{"providerDisplayName":"Example","seeMoreUrl":"https://example.com"}],
				 "suggestedResponses":[{"text":"What can you do?","author":"user"}]}
			],
			"firstNewMessageIndex":1,
			"throttling":{"maxNumUserMessagesInConversation":5,"numUserMessagesInConversation":1},
			"result":{"value":"Success","serviceVersion":"20230301"},
			"telemetry":{"startTime":"now"}
		}}`

		It("keeps typed fields typed and unknown fields opaque", func() {
			var resp sydney.Response
			Expect(json.Unmarshal([]byte(raw), &resp)).To(Succeed())

			Expect(resp.Terminal()).To(BeTrue())
			Expect(resp.Item.Result.Value).To(Equal("Success"))
			Expect(resp.Item.Throttling.NumUserMessagesInConversation).To(Equal(1))
			Expect(resp.Item.Throttling.MaxNumUserMessagesInConversation).To(Equal(5))
			Expect(resp.Item.Extra).To(HaveKey("telemetry"))
			Expect(resp.Item.Messages[0].Extra).To(HaveKey("nlu"))
			Expect(resp.Item.Messages[1].Extra).To(HaveKey("offense"))
			Expect(resp.Extra).To(BeNil())
		})

		It("accepts the short quota key spelling", func() {
			var t sydney.Throttling
			Expect(json.Unmarshal([]byte(`{"numUserMessagesInConversation":4,"maxUserMessagesInConversation":5}`), &t)).To(Succeed())

			Expect(t.MaxNumUserMessagesInConversation).To(Equal(5))
			Expect(t.Exhausted()).To(BeFalse())
			Expect(t.Remaining()).To(Equal(1))
		})

		It("does not report exhaustion when the maximum is missing", func() {
			var t sydney.Throttling
			Expect(json.Unmarshal([]byte(`{"numUserMessagesInConversation":1}`), &t)).To(Succeed())

			Expect(t.Exhausted()).To(BeFalse())
			Expect(t.Remaining()).To(Equal(0))
		})

		It("reports exhaustion when the quota is used up", func() {
			t := &sydney.Throttling{NumUserMessagesInConversation: 5, MaxNumUserMessagesInConversation: 5}

			Expect(t.Exhausted()).To(BeTrue())
			Expect(t.Remaining()).To(Equal(0))
		})

		It("produces the user-facing body", func() {
			var resp sydney.Response
			Expect(json.Unmarshal([]byte(raw), &resp)).To(Succeed())

			Expect(sydney.ExtractBody(&resp)).To(Equal("Hi there¹\n\nSources:\n1. [Example](https://example.com)"))
			Expect(sydney.ExtractSuggestions(&resp)).To(Equal([]string{"What can you do?"}))
		})
	})
})
