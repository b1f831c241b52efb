package llm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quizagent/pkg/llm"
)

var _ = Describe("Conversation", func() {
	var conv *llm.Conversation

	BeforeEach(func() {
		conv = llm.NewConversation("system prompt", "page content")
	})

	It("is seeded with a system and a user turn", func() {
		turns := conv.Turns()
		Expect(turns).To(HaveLen(2))
		Expect(turns[0]).To(Equal(llm.SystemTurn{Content: "system prompt"}))
		Expect(turns[1]).To(Equal(llm.UserTurn{Content: "page content"}))
		Expect(conv.Resumable()).To(BeTrue())
	})

	Context("when the assistant calls tools", func() {
		BeforeEach(func() {
			Expect(conv.Append(llm.AssistantTurn{ToolCalls: []llm.ToolInvocation{
				{ID: "call_1", Name: "run_python"},
				{ID: "call_2", Name: "run_python"},
			}})).To(Succeed())
		})

		It("is not resumable until every call is answered", func() {
			Expect(conv.Resumable()).To(BeFalse())
			Expect(conv.Pending()).To(ConsistOf("call_1", "call_2"))

			Expect(conv.Append(llm.ToolResultTurn{CallID: "call_2", Content: "b"})).To(Succeed())
			Expect(conv.Resumable()).To(BeFalse())

			Expect(conv.Append(llm.ToolResultTurn{CallID: "call_1", Content: "a"})).To(Succeed())
			Expect(conv.Resumable()).To(BeTrue())
			Expect(conv.Len()).To(Equal(5))
		})

		It("rejects an assistant turn while calls are pending", func() {
			err := conv.Append(llm.AssistantTurn{Content: "done"})
			Expect(err).To(MatchError(llm.ErrPendingToolCalls))
		})

		It("rejects results that answer no pending call", func() {
			err := conv.Append(llm.ToolResultTurn{CallID: "call_9"})
			Expect(err).To(MatchError(llm.ErrUncorrelatedResult{CallID: "call_9"}))
		})

		It("rejects a second result for the same call", func() {
			Expect(conv.Append(llm.ToolResultTurn{CallID: "call_1"})).To(Succeed())
			err := conv.Append(llm.ToolResultTurn{CallID: "call_1"})
			Expect(err).To(MatchError(llm.ErrUncorrelatedResult{CallID: "call_1"}))
		})
	})

	It("never holds two terminal assistant turns", func() {
		Expect(conv.Append(llm.AssistantTurn{Content: `{"answer": 1}`})).To(Succeed())
		Expect(conv.Closed()).To(BeTrue())
		Expect(conv.Resumable()).To(BeFalse())

		err := conv.Append(llm.AssistantTurn{Content: `{"answer": 2}`})
		Expect(err).To(MatchError(llm.ErrConversationClosed))
		Expect(conv.Len()).To(Equal(3))
	})

	It("returns a copy of its turns", func() {
		turns := conv.Turns()
		turns[0] = llm.UserTurn{Content: "mutated"}

		Expect(conv.Turns()[0]).To(Equal(llm.SystemTurn{Content: "system prompt"}))
	})
})
