package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/quizagent/pkg/llm"
	"github.com/papercomputeco/quizagent/pkg/llm/openai"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_abc",
        "type": "function",
        "function": {"name": "run_python", "arguments": "{\"code\": \"print(6*7)\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 120, "completion_tokens": 15, "total_tokens": 135}
}`

const answerCompletion = `{
  "id": "chatcmpl-2",
  "object": "chat.completion",
  "created": 1700000001,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"answer\": 42, \"submission_url\": \"https://q/submit\"}"}
  }]
}`

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		requests []map[string]any
		reply    string
	)

	BeforeEach(func() {
		requests = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(HaveSuffix("/chat/completions"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))

			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			var decoded map[string]any
			Expect(json.Unmarshal(body, &decoded)).To(Succeed())
			requests = append(requests, decoded)

			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, reply)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func() *openai.Client {
		return openai.New(openai.Config{
			BaseURL: server.URL + "/v1",
			APIKey:  "test-key",
			Model:   "gpt-4o-mini",
		}, zap.NewNop())
	}

	tools := []llm.ToolSpec{{
		Name:        "run_python",
		Description: "Executes Python code.",
		Parameters: map[string]any{
			"type":     "object",
			"required": []string{"code"},
		},
	}}

	It("returns tool invocations from the reply", func() {
		reply = toolCallCompletion
		conv := llm.NewConversation("system", "page")

		got, err := newClient().Complete(context.Background(), conv, tools)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Content).To(BeEmpty())
		Expect(got.ToolCalls).To(Equal([]llm.ToolInvocation{{
			ID:        "call_abc",
			Name:      "run_python",
			Arguments: `{"code": "print(6*7)"}`,
		}}))
		Expect(got.PromptTokens).To(Equal(int64(120)))

		Expect(requests).To(HaveLen(1))
		Expect(requests[0]["model"]).To(Equal("gpt-4o-mini"))
		Expect(requests[0]["messages"]).To(HaveLen(2))
		Expect(requests[0]["tools"]).To(HaveLen(1))
	})

	It("returns content when the model answers", func() {
		reply = answerCompletion
		conv := llm.NewConversation("system", "page")

		got, err := newClient().Complete(context.Background(), conv, tools)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ToolCalls).To(BeEmpty())
		Expect(got.Content).To(ContainSubstring(`"answer": 42`))
	})

	It("sends tool results correlated with their call", func() {
		reply = answerCompletion
		conv := llm.NewConversation("system", "page")
		Expect(conv.Append(llm.AssistantTurn{ToolCalls: []llm.ToolInvocation{
			{ID: "call_abc", Name: "run_python", Arguments: `{"code":"print(1)"}`},
		}})).To(Succeed())
		Expect(conv.Append(llm.ToolResultTurn{CallID: "call_abc", Content: "1\n"})).To(Succeed())

		_, err := newClient().Complete(context.Background(), conv, tools)
		Expect(err).NotTo(HaveOccurred())

		messages := requests[0]["messages"].([]any)
		Expect(messages).To(HaveLen(4))

		assistant := messages[2].(map[string]any)
		Expect(assistant["role"]).To(Equal("assistant"))
		Expect(assistant["tool_calls"]).To(HaveLen(1))

		tool := messages[3].(map[string]any)
		Expect(tool["role"]).To(Equal("tool"))
		Expect(tool["tool_call_id"]).To(Equal("call_abc"))
	})

	It("reports transport errors", func() {
		server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error": {"message": "bad request", "type": "invalid_request_error"}}`)
		})
		conv := llm.NewConversation("system", "page")

		_, err := newClient().Complete(context.Background(), conv, tools)
		Expect(err).To(HaveOccurred())
		Expect(strings.ToLower(err.Error())).To(ContainSubstring("chat completion"))
	})
})

var _ = Describe("Messages", func() {
	type unknownTurn struct{ llm.UserTurn }

	It("maps every turn kind", func() {
		messages, err := openai.Messages([]llm.Turn{
			llm.SystemTurn{Content: "s"},
			llm.UserTurn{Content: "u"},
			llm.AssistantTurn{ToolCalls: []llm.ToolInvocation{{ID: "1", Name: "run_python", Arguments: "{}"}}},
			llm.ToolResultTurn{CallID: "1", Content: "out"},
			llm.AssistantTurn{Content: "final"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(messages).To(HaveLen(5))
		Expect(messages[0].OfSystem).NotTo(BeNil())
		Expect(messages[1].OfUser).NotTo(BeNil())
		Expect(messages[2].OfAssistant.ToolCalls).To(HaveLen(1))
		Expect(messages[3].OfTool.ToolCallID).To(Equal("1"))
		Expect(messages[4].OfAssistant).NotTo(BeNil())
	})

	It("rejects turn kinds it does not know", func() {
		_, err := openai.Messages([]llm.Turn{unknownTurn{}})
		Expect(err).To(BeAssignableToTypeOf(llm.ErrUnknownTurn{}))
	})
})
