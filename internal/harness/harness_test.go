package harness_test

import (
	"context"
	"time"

	"go-docbench/internal/harness"
	"go-docbench/internal/strategy"
	"go-docbench/internal/workload"
	"go-docbench/pkg/docstore"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// leakyStore acknowledges deletes without performing them.
type leakyStore struct {
	*docstore.MemoryStore
}

func (s leakyStore) Delete(_ context.Context, collection, id string) (docstore.DeleteReceipt, error) {
	return docstore.DeleteReceipt{Collection: collection, ID: id, UpdateTime: time.Now()}, nil
}

func generate(count, size int) workload.Workload {
	w, err := workload.Generate(count, size)
	Expect(err).NotTo(HaveOccurred())
	return w
}

var _ = Describe("Measure", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("runs 50 documents of 1KiB for 5 sequential trials", func() {
		w := generate(50, 1024)
		store := docstore.NewMemoryStore(docstore.MemoryOptions{})

		m, err := harness.Measure(ctx, strategy.Sequential{}, store, w, harness.Config{Collection: "benchmark", Trials: 5, VerifyIsolation: true})
		Expect(err).NotTo(HaveOccurred())

		Expect(m.Strategy).To(Equal(strategy.NameSequential))
		Expect(m.Trials).To(HaveLen(5))
		Expect(store.Writes()).To(Equal(int64(250)))
		Expect(store.Deletes()).To(Equal(int64(250)))

		var sum time.Duration
		for _, d := range m.Trials {
			sum += d
		}
		Expect(m.Total).To(Equal(sum))
	})

	It("can be repeated with one trial and a positive duration each time", func() {
		w := generate(5, 32)
		store := docstore.NewMemoryStore(docstore.MemoryOptions{Latency: time.Millisecond})

		for _, name := range strategy.Names() {
			s, err := strategy.New(name, strategy.DefaultPoolWidth)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 2; i++ {
				m, err := harness.Measure(ctx, s, store, w, harness.Config{Collection: "benchmark", Trials: 1, VerifyIsolation: true})
				Expect(err).NotTo(HaveOccurred(), "%s run %d", name, i)
				Expect(m.Total).To(BeNumerically(">", 0))
			}
		}
	})

	It("rejects invalid configuration before calling the store", func() {
		w := generate(1, 1)
		store := docstore.NewMemoryStore(docstore.MemoryOptions{})

		_, err := harness.Measure(ctx, strategy.Sequential{}, store, w, harness.Config{Collection: "benchmark", Trials: 0})
		Expect(err).To(MatchError(ContainSubstring("trials")))

		_, err = harness.Measure(ctx, strategy.Sequential{}, store, nil, harness.Config{Collection: "benchmark", Trials: 1})
		Expect(err).To(MatchError(ContainSubstring("empty")))

		_, err = harness.Measure(ctx, strategy.Sequential{}, store, w, harness.Config{Trials: 1})
		Expect(err).To(MatchError(ContainSubstring("collection")))

		Expect(store.Writes()).To(BeZero())
	})

	It("fails the whole measurement when a trial fails", func() {
		w := generate(10, 0)
		// The 15th write lands in the second trial
		store := docstore.NewMemoryStore(docstore.MemoryOptions{FailOnWrite: 15})

		m, err := harness.Measure(ctx, strategy.Sequential{}, store, w, harness.Config{Collection: "benchmark", Trials: 3})
		Expect(err).To(MatchError(ContainSubstring("trial 2")))
		Expect(strategy.IsTrialError(err)).To(BeTrue())
		Expect(m.Total).To(BeZero())
		Expect(m.Trials).To(BeEmpty())
	})

	Describe("isolation", func() {
		It("detects documents left behind by a trial", func() {
			w := generate(3, 0)
			store := leakyStore{docstore.NewMemoryStore(docstore.MemoryOptions{})}

			_, err := harness.Measure(ctx, strategy.Cooperative{}, store, w, harness.Config{Collection: "benchmark", Trials: 2, VerifyIsolation: true})
			Expect(err).To(HaveOccurred())
			Expect(harness.IsIsolationError(err)).To(BeTrue())
			Expect(err).To(MatchError("trial 1 left 3 documents in benchmark"))

			// Without verification the leak goes unnoticed
			_, err = harness.Measure(ctx, strategy.Cooperative{}, store, w, harness.Config{Collection: "benchmark", Trials: 2})
			Expect(err).NotTo(HaveOccurred())
		})

		It("ignores leftovers of earlier runs", func() {
			store := docstore.NewMemoryStore(docstore.MemoryOptions{})
			_, err := store.Write(ctx, "benchmark", "stale", docstore.Document{"a": 1})
			Expect(err).NotTo(HaveOccurred())

			m, err := harness.Measure(ctx, strategy.Sequential{}, store, generate(4, 8), harness.Config{Collection: "benchmark", Trials: 2, VerifyIsolation: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Trials).To(HaveLen(2))

			_, ok := store.Get("benchmark", "stale")
			Expect(ok).To(BeTrue())
		})
	})
})
