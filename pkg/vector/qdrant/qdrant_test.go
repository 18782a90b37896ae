package qdrant_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/vector"
	"github.com/papercomputeco/reposcope/pkg/vector/qdrant"
)

var _ = Describe("Driver", func() {
	It("should implement vector.Driver interface", func() {
		var _ vector.Driver = (*qdrant.Driver)(nil)
	})

	Describe("NewDriver", func() {
		It("requires a target", func() {
			_, err := qdrant.NewDriver(context.Background(), qdrant.Config{Dimensions: 4}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("qdrant target is required")))
		})

		It("requires dimensions", func() {
			_, err := qdrant.NewDriver(context.Background(), qdrant.Config{Target: "localhost:6334"}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("dimensions")))
		})

		It("rejects a malformed port", func() {
			_, err := qdrant.NewDriver(context.Background(), qdrant.Config{Target: "localhost:grpc", Dimensions: 4}, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("port")))
		})
	})

	Describe("PointID", func() {
		It("is stable and distinct per chunk id", func() {
			Expect(qdrant.PointID("repo1_a_chunk_0")).To(Equal(qdrant.PointID("repo1_a_chunk_0")))
			Expect(qdrant.PointID("repo1_a_chunk_0")).NotTo(Equal(qdrant.PointID("repo1_a_chunk_1")))
		})
	})

	Describe("Payload", func() {
		It("round trips through qdrant values", func() {
			doc := vector.Document{
				ID:       "repo1_auth.py_chunk_2",
				Content:  "def login(user, password):",
				Metadata: vector.Metadata{Path: "auth.py", Language: "python", StartLine: 10, EndLine: 14},
			}

			payload := qc.NewValueMap(qdrant.Payload(doc))
			Expect(qdrant.DocumentFromPayload(payload)).To(Equal(doc))

			prefixes := payload["id_prefixes"].GetListValue().GetValues()
			Expect(prefixes).To(HaveLen(3))
			Expect(prefixes[0].GetStringValue()).To(Equal("repo1_"))
		})
	})

	Describe("PrefixFilter", func() {
		It("returns nil for the whole collection", func() {
			f, err := qdrant.PrefixFilter("")
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(BeNil())
		})

		It("matches the keyword index for boundary prefixes", func() {
			f, err := qdrant.PrefixFilter("repo1_")
			Expect(err).NotTo(HaveOccurred())
			Expect(f.GetMust()).To(HaveLen(1))
			Expect(f.GetMust()[0].GetField().GetKey()).To(Equal("id_prefixes"))
			Expect(f.GetMust()[0].GetField().GetMatch().GetKeyword()).To(Equal("repo1_"))
		})

		It("rejects prefixes that split an id segment", func() {
			_, err := qdrant.PrefixFilter("repo")
			Expect(err).To(MatchError(vector.ErrUnsupportedPrefix))
		})
	})
})
