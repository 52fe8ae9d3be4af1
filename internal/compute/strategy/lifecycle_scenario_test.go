package strategy

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/provider/fake"
	"github.com/imamik/nodekit/pkg/compute"
)

var _ = Describe("Group lifecycle", func() {
	var (
		ctx     context.Context
		p       *fake.Provider
		deps    Deps
		results *BatchResult
	)

	BeforeEach(func() {
		ctx = context.Background()
		p = fake.New(fake.WithBootPolls(2))
		deps, _, _ = newTestDeps(p)
		results = NewBatchResult()
	})

	Context("with a generated key pair", func() {
		BeforeEach(func() {
			tmpl := autoTemplate()
			tmpl.Options.AutoCreateKeyPair = true
			Expect(NewOrchestrator(deps).CreateNodesInGroup(ctx, "web", 3, tmpl, results)).To(Succeed())
		})

		It("brings every node up with the generated key", func() {
			good := results.Good()
			Expect(good).To(HaveLen(3))
			for _, n := range good {
				Expect(n.Status).To(Equal(compute.NodeRunning))
				Expect(n.Credentials.PrivateKey).To(ContainSubstring("RSA PRIVATE KEY"))
			}
		})

		It("discards the key pair once the batch is done", func() {
			keys, err := p.ListKeyPairs(ctx, provider.ListOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(keys.Items).To(BeEmpty())
		})

		It("removes every owned resource when the group is destroyed", func() {
			destroyed, err := NewCleaner(deps).DestroyNodesInGroup(ctx, "web")
			Expect(err).NotTo(HaveOccurred())
			Expect(destroyed).To(HaveLen(3))

			Expect(p.Deleted()).To(HaveLen(len(p.Created())))
			nodes, err := deps.Lister.ListNodes(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(BeEmpty())
		})
	})

	Context("when no node comes up", func() {
		BeforeEach(func() {
			p = fake.New(fake.WithBootStatus(func(provider.CreateInstanceParams) string { return fake.StatusError }))
			deps, _, _ = newTestDeps(p)
			Expect(NewOrchestrator(deps).CreateNodesInGroup(ctx, "web", 2, autoTemplate(), results)).To(Succeed())
		})

		It("reports every node as failed and leaves nothing behind", func() {
			Expect(results.Good()).To(BeEmpty())
			Expect(results.Bad()).To(HaveLen(2))
			Expect(p.Deleted()).To(HaveLen(len(p.Created())))
		})
	})
})
