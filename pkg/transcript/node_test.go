package transcript_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quizagent/pkg/transcript"
)

func userBucket(content string) transcript.Bucket {
	return transcript.Bucket{Type: "turn", Role: "user", Content: content}
}

var _ = Describe("Node", func() {
	Describe("NewNode", func() {
		Context("when creating a root node (no parent)", func() {
			It("sets ParentHash to nil for root nodes", func() {
				node := transcript.NewNode(userBucket("test"), "")

				Expect(node.ParentHash).To(BeNil())
			})

			It("produces consistent hashes for the same content", func() {
				node1 := transcript.NewNode(userBucket("same content"), "")
				node2 := transcript.NewNode(userBucket("same content"), "")

				Expect(node1.Hash).To(Equal(node2.Hash))
			})

			It("produces different hashes for different content", func() {
				node1 := transcript.NewNode(userBucket("content A"), "")
				node2 := transcript.NewNode(userBucket("content B"), "")

				Expect(node1.Hash).NotTo(Equal(node2.Hash))
			})

			It("hashes tool call correlation", func() {
				a := transcript.Bucket{Type: "turn", Role: "tool", Content: "42", ToolCallID: "call_1"}
				b := transcript.Bucket{Type: "turn", Role: "tool", Content: "42", ToolCallID: "call_2"}

				Expect(transcript.NewNode(a, "").Hash).NotTo(Equal(transcript.NewNode(b, "").Hash))
			})
		})

		Context("when creating a child node (with parent)", func() {
			var parent *transcript.Node

			BeforeEach(func() {
				parent = transcript.NewNode(userBucket("parent content"), "")
			})

			It("links the child to the parent via ParentHash", func() {
				child := transcript.NewNode(userBucket("child content"), parent.Hash)

				Expect(child.ParentHash).NotTo(BeNil())
				Expect(*child.ParentHash).To(Equal(parent.Hash))
			})

			It("produces different hashes for same content with different parents", func() {
				parent2 := transcript.NewNode(userBucket("different parent"), "")
				child1 := transcript.NewNode(userBucket("same content"), parent.Hash)
				child2 := transcript.NewNode(userBucket("same content"), parent2.Hash)

				Expect(child1.Hash).NotTo(Equal(child2.Hash))
			})
		})
	})

	Describe("Hash computation", func() {
		It("produces a valid SHA-256 hex string (64 characters)", func() {
			node := transcript.NewNode(userBucket("test"), "")

			Expect(node.Hash).To(MatchRegexp("^[a-f0-9]{64}$"))
		})
	})

	Describe("Verify", func() {
		It("accepts untouched nodes", func() {
			parent := transcript.NewNode(userBucket("question"), "")
			child := transcript.NewNode(userBucket("follow up"), parent.Hash)

			Expect(parent.Verify()).To(BeTrue())
			Expect(child.Verify()).To(BeTrue())
		})

		It("rejects nodes whose content was altered", func() {
			node := transcript.NewNode(userBucket("original"), "")
			node.Bucket.Content = "tampered"

			Expect(node.Verify()).To(BeFalse())
		})

		It("rejects nodes whose parent was altered", func() {
			node := transcript.NewNode(userBucket("original"), "aaaa")
			other := "bbbb"
			node.ParentHash = &other

			Expect(node.Verify()).To(BeFalse())
		})
	})
})
