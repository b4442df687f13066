package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chathub/pkg/chathub"
	"github.com/papercomputeco/chathub/pkg/session"
	"github.com/papercomputeco/chathub/pkg/sydney"
)

type completeCall struct {
	conv         sydney.Conversation
	style        sydney.Style
	systemPrompt string
	message      string
}

// fakeBackend answers every turn with a fixed quota report.
type fakeBackend struct {
	created   int
	createErr error
	turnErr   error
	num, max  int
	noQuota   bool
	calls     []completeCall
}

func (b *fakeBackend) CreateConversation(ctx context.Context) (*sydney.Conversation, error) {
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.created++
	return &sydney.Conversation{
		ConversationID:        "conv-new",
		ClientID:              "client-new",
		ConversationSignature: "sig-new",
	}, nil
}

func (b *fakeBackend) Complete(ctx context.Context, conv *sydney.Conversation, style sydney.Style, systemPrompt, message string) (*chathub.Exchange, error) {
	b.calls = append(b.calls, completeCall{conv: *conv, style: style, systemPrompt: systemPrompt, message: message})
	if b.turnErr != nil {
		return nil, b.turnErr
	}

	idx := 1
	item := &sydney.Item{
		Messages: []sydney.Message{
			{Author: sydney.AuthorUser, Text: message},
			{
				Author:             sydney.AuthorBot,
				Text:               "answer[^1^]",
				SuggestedResponses: []sydney.SuggestedResponse{{Text: "more"}},
			},
		},
		FirstNewMessageIndex: &idx,
	}
	if !b.noQuota {
		item.Throttling = &sydney.Throttling{
			NumUserMessagesInConversation:    b.num,
			MaxNumUserMessagesInConversation: b.max,
		}
	}

	return &chathub.Exchange{
		Conversation: conv,
		Response:     &sydney.Response{Type: sydney.TypeStreamItem, Item: item},
	}, nil
}

// failingStorer fails every read, as an unreachable store would.
type failingStorer struct {
	*session.MemoryStorer
	err error
}

func (s *failingStorer) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, s.err
}

var _ = Describe("Manager", func() {
	var (
		backend *fakeBackend
		storer  *session.MemoryStorer
		manager *session.Manager
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = &fakeBackend{num: 1, max: 5}
		storer = session.NewMemoryStorer()
		manager = session.NewManager(backend, storer, session.Config{
			Style:        sydney.StylePrecise,
			SystemPrompt: "be brief",
		}, nil)
	})

	persisted := func(caller string) *sydney.Conversation {
		conv, err := manager.Peek(ctx, caller)
		Expect(err).NotTo(HaveOccurred())
		return conv
	}

	Describe("Turn", func() {
		It("creates a session for a new caller and persists it", func() {
			before := time.Now()

			reply, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())

			Expect(reply.Text).To(Equal("answer¹"))
			Expect(reply.Suggestions).To(Equal([]string{"more"}))
			Expect(reply.Ended).To(BeFalse())
			Expect(reply.Remaining).To(Equal(4))
			Expect(backend.created).To(Equal(1))

			conv := persisted("alice")
			Expect(conv.ConversationID).To(Equal("conv-new"))
			Expect(conv.CurrentIndex).To(Equal(1))

			lifetime := session.DefaultLifetime - session.DefaultMargin
			Expect(conv.Expiry).To(BeNumerically(">=", before.Add(lifetime).Unix()))
			Expect(conv.Expiry).To(BeNumerically("<=", time.Now().Add(lifetime).Unix()))
		})

		It("keeps the safety margin when the configured margin is zero", func() {
			manager = session.NewManager(backend, storer, session.Config{Lifetime: time.Hour}, nil)
			before := time.Now()

			_, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())

			lifetime := time.Hour - session.DefaultMargin
			conv := persisted("alice")
			Expect(conv.Expiry).To(BeNumerically(">=", before.Add(lifetime).Unix()))
			Expect(conv.Expiry).To(BeNumerically("<=", time.Now().Add(lifetime).Unix()))
		})

		It("uses the configured defaults when no style is given", func() {
			_, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())

			Expect(backend.calls).To(HaveLen(1))
			Expect(backend.calls[0].style).To(Equal(sydney.StylePrecise))
			Expect(backend.calls[0].systemPrompt).To(Equal("be brief"))
		})

		It("resumes the persisted session on the next turn", func() {
			_, err := manager.Turn(ctx, "alice", sydney.StyleCreative, "one")
			Expect(err).NotTo(HaveOccurred())
			firstExpiry := persisted("alice").Expiry

			backend.num = 2
			_, err = manager.Turn(ctx, "alice", sydney.StyleCreative, "two")
			Expect(err).NotTo(HaveOccurred())

			Expect(backend.created).To(Equal(1))
			Expect(backend.calls[1].conv.CurrentIndex).To(Equal(1))
			Expect(backend.calls[1].style).To(Equal(sydney.StyleCreative))

			conv := persisted("alice")
			Expect(conv.CurrentIndex).To(Equal(2))
			Expect(conv.Expiry).To(Equal(firstExpiry))
		})

		It("persists index 4 when 4 of 5 turns are used", func() {
			backend.num, backend.max = 4, 5

			reply, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Ended).To(BeFalse())
			Expect(reply.Remaining).To(Equal(1))
			Expect(reply.Text).NotTo(ContainSubstring(session.ForcedEndNotice))

			Expect(persisted("alice").CurrentIndex).To(Equal(4))
		})

		It("ends the session when 5 of 5 turns are used", func() {
			_, err := manager.Turn(ctx, "alice", "", "first")
			Expect(err).NotTo(HaveOccurred())

			backend.num, backend.max = 5, 5
			reply, err := manager.Turn(ctx, "alice", "", "last")
			Expect(err).NotTo(HaveOccurred())

			Expect(reply.Ended).To(BeTrue())
			Expect(reply.Remaining).To(BeZero())
			Expect(reply.Text).To(HavePrefix("answer¹"))
			Expect(reply.Text).To(HaveSuffix(session.ForcedEndNotice))

			_, err = manager.Peek(ctx, "alice")
			Expect(err).To(BeAssignableToTypeOf(session.ErrNotFound{}))
		})

		It("advances the index by one when the backend reports no quota", func() {
			backend.noQuota = true

			_, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())
			_, err = manager.Turn(ctx, "alice", "", "again")
			Expect(err).NotTo(HaveOccurred())

			Expect(persisted("alice").CurrentIndex).To(Equal(2))
		})

		It("returns a creation failure as reply text", func() {
			backend.createErr = &sydney.SessionCreateError{Message: "Captcha required"}

			reply, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.Text).To(Equal("Captcha required"))
			Expect(backend.calls).To(BeEmpty())
			Expect(storer.Len()).To(BeZero())
		})

		It("leaves the session untouched when the turn fails", func() {
			_, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())
			before := persisted("alice")

			backend.turnErr = &sydney.ConnectError{Attempts: 3, Err: errors.New("refused")}
			_, err = manager.Turn(ctx, "alice", "", "again")

			var connectErr *sydney.ConnectError
			Expect(errors.As(err, &connectErr)).To(BeTrue())
			Expect(persisted("alice")).To(Equal(before))
		})
	})

	Describe("Resolve", func() {
		It("round-trips a persisted session unchanged", func() {
			conv := &sydney.Conversation{
				ConversationID:        "conv-1",
				ClientID:              "client-1",
				ConversationSignature: "sig-1",
				CurrentIndex:          3,
				Expiry:                time.Now().Add(time.Hour).Unix(),
			}
			data, err := json.Marshal(conv)
			Expect(err).NotTo(HaveOccurred())
			Expect(storer.Put(ctx, "alice", data, conv.ExpiresAt())).To(Succeed())

			got, err := manager.Resolve(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(conv))
			Expect(backend.created).To(BeZero())
		})

		It("creates a new session once the persisted one expired", func() {
			conv := sydney.Conversation{
				ConversationID:        "conv-old",
				ClientID:              "client-old",
				ConversationSignature: "sig-old",
				CurrentIndex:          2,
				Expiry:                time.Now().Add(-time.Minute).Unix(),
			}
			data, err := json.Marshal(conv)
			Expect(err).NotTo(HaveOccurred())
			Expect(storer.Put(ctx, "alice", data, time.Time{})).To(Succeed())

			got, err := manager.Resolve(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ConversationID).To(Equal("conv-new"))
			Expect(got.Fresh()).To(BeTrue())
		})

		It("replaces an unreadable session", func() {
			Expect(storer.Put(ctx, "alice", []byte("garbage"), time.Time{})).To(Succeed())

			_, err := manager.Peek(ctx, "alice")
			Expect(err).To(BeAssignableToTypeOf(session.ErrUnreadable{}))

			got, err := manager.Resolve(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ConversationID).To(Equal("conv-new"))
		})

		It("returns store failures without creating a conversation", func() {
			manager = session.NewManager(backend, &failingStorer{
				MemoryStorer: storer,
				err:          errors.New("connection refused"),
			}, session.Config{}, nil)

			got, err := manager.Resolve(ctx, "alice")
			Expect(err).To(MatchError(ContainSubstring("connection refused")))
			Expect(got).To(BeNil())
			Expect(backend.created).To(BeZero())

			_, err = manager.Turn(ctx, "alice", "", "hello")
			Expect(err).To(HaveOccurred())
			Expect(backend.calls).To(BeEmpty())
		})
	})

	Describe("Reset", func() {
		It("drops the session so the next turn starts over", func() {
			_, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())

			Expect(manager.Reset(ctx, "alice")).To(Succeed())

			_, err = manager.Peek(ctx, "alice")
			Expect(err).To(BeAssignableToTypeOf(session.ErrNotFound{}))
		})
	})

	Describe("SetDefaults", func() {
		It("applies to later turns", func() {
			manager.SetDefaults("creative", "be verbose")

			_, err := manager.Turn(ctx, "alice", "", "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(backend.calls[0].style).To(Equal(sydney.StyleCreative))
			Expect(backend.calls[0].systemPrompt).To(Equal("be verbose"))
		})
	})
})
