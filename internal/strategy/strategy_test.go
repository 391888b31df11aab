package strategy

import (
	"context"
	"time"

	"go-docbench/internal/workload"
	"go-docbench/pkg/docstore"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const collection = "benchmark"

func allStrategies() []Strategy {
	var out []Strategy
	for _, name := range Names() {
		s, err := New(name, DefaultPoolWidth)
		Expect(err).NotTo(HaveOccurred())
		out = append(out, s)
	}
	return out
}

func mustGenerate(count, size int) workload.Workload {
	w, err := workload.Generate(count, size)
	Expect(err).NotTo(HaveOccurred())
	return w
}

// unackedStore acknowledges nothing: every write receipt comes back with a zero timestamp.
type unackedStore struct {
	*docstore.MemoryStore
}

func (s unackedStore) Write(ctx context.Context, collection, id string, doc docstore.Document) (docstore.WriteReceipt, error) {
	r, err := s.MemoryStore.Write(ctx, collection, id, doc)
	r.UpdateTime = time.Time{}
	return r, err
}

// gatedStore blocks writes of one id until the gate opens.
type gatedStore struct {
	*docstore.MemoryStore
	blockedID string
	gate      chan struct{}
}

func (s *gatedStore) Write(ctx context.Context, collection, id string, doc docstore.Document) (docstore.WriteReceipt, error) {
	if id == s.blockedID {
		<-s.gate
	}
	return s.MemoryStore.Write(ctx, collection, id, doc)
}

var _ = Describe("Strategies", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("a full run", func() {
		It("returns the collection to empty for every strategy", func() {
			w := mustGenerate(25, 128)

			for _, s := range allStrategies() {
				store := docstore.NewMemoryStore(docstore.MemoryOptions{})

				Expect(s.Run(ctx, store, collection, w)).To(Succeed(), s.Name())

				n, err := store.Count(ctx, collection)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(BeZero(), s.Name())
				Expect(store.Writes()).To(Equal(int64(len(w))), s.Name())
				Expect(store.Deletes()).To(Equal(int64(len(w))), s.Name())
			}
		})

		It("treats unacknowledged receipts as a measurement error", func() {
			w := mustGenerate(4, 0)

			for _, s := range allStrategies() {
				store := unackedStore{docstore.NewMemoryStore(docstore.MemoryOptions{})}

				err := s.Run(ctx, store, collection, w)
				Expect(err).To(HaveOccurred(), s.Name())
				Expect(IsMeasurementError(err)).To(BeTrue(), s.Name())
				Expect(IsTrialError(err)).To(BeFalse(), s.Name())
				Expect(err.Error()).To(ContainSubstring("0 of 4"))
			}
		})
	})

	Describe("Sequential", func() {
		It("aborts on the fifth write leaving four documents", func() {
			w := mustGenerate(10, 0)
			store := docstore.NewMemoryStore(docstore.MemoryOptions{FailOnWrite: 5})

			err := Sequential{}.Run(ctx, store, collection, w)
			Expect(err).To(HaveOccurred())

			te, ok := GetTrialError(err)
			Expect(ok).To(BeTrue())
			Expect(te.Phase).To(Equal(PhaseWrite))
			Expect(te.Completed).To(Equal(4))
			Expect(err).To(MatchError(docstore.ErrInjected))

			n, err := store.Count(ctx, collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(4)))
			Expect(store.Writes()).To(Equal(int64(5)))
			Expect(store.Deletes()).To(BeZero())

			for _, item := range w[:4] {
				_, ok := store.Get(collection, item.ID)
				Expect(ok).To(BeTrue(), item.ID)
			}
		})

		It("aborts in the delete phase", func() {
			w := mustGenerate(6, 0)
			store := docstore.NewMemoryStore(docstore.MemoryOptions{FailOnDelete: 3})

			err := Sequential{}.Run(ctx, store, collection, w)
			te, ok := GetTrialError(err)
			Expect(ok).To(BeTrue())
			Expect(te.Phase).To(Equal(PhaseDelete))
			Expect(te.Completed).To(Equal(2))

			n, _ := store.Count(ctx, collection)
			Expect(n).To(Equal(int64(4)))
		})
	})

	Describe("Pooled", func() {
		It("waits for all of a workload smaller than its width", func() {
			w := mustGenerate(3, 16)
			store := docstore.NewMemoryStore(docstore.MemoryOptions{Latency: 20 * time.Millisecond})

			p, err := NewPooled(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Run(ctx, store, collection, w)).To(Succeed())

			Expect(store.MaxInFlight()).To(BeNumerically("<=", 3))
			Expect(store.Writes()).To(Equal(int64(3)))
			Expect(store.Deletes()).To(Equal(int64(3)))
		})

		It("never exceeds its width", func() {
			w := mustGenerate(40, 0)
			store := docstore.NewMemoryStore(docstore.MemoryOptions{Latency: 2 * time.Millisecond})

			p, err := NewPooled(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Run(ctx, store, collection, w)).To(Succeed())

			Expect(store.MaxInFlight()).To(BeNumerically("<=", 4))
			Expect(p.Width()).To(Equal(4))
		})

		It("aborts the run before the delete phase on failure", func() {
			w := mustGenerate(20, 0)
			store := docstore.NewMemoryStore(docstore.MemoryOptions{FailOnWrite: 7})

			p, err := NewPooled(3)
			Expect(err).NotTo(HaveOccurred())

			err = p.Run(ctx, store, collection, w)
			te, ok := GetTrialError(err)
			Expect(ok).To(BeTrue())
			Expect(te.Strategy).To(Equal(NamePooled))
			Expect(te.Phase).To(Equal(PhaseWrite))
			Expect(err).To(MatchError(docstore.ErrInjected))
			Expect(store.Deletes()).To(BeZero(), "delete phase must not start")
		})
	})

	Describe("Cooperative", func() {
		It("drains the batch before reporting a failure", func() {
			w := mustGenerate(5, 0)
			store := docstore.NewMemoryStore(docstore.MemoryOptions{FailOnWrite: 2})

			err := Cooperative{}.Run(ctx, store, collection, w)
			te, ok := GetTrialError(err)
			Expect(ok).To(BeTrue())
			Expect(te.Strategy).To(Equal(NameCooperative))
			Expect(te.Completed).To(Equal(4))
			Expect(store.Writes()).To(Equal(int64(5)))
			Expect(store.Deletes()).To(BeZero())
		})
	})

	Describe("concurrent strategies", func() {
		for _, name := range []string{NamePooled, NameCooperative} {
			It("wait for every outstanding write before deleting: "+name, func() {
				s, err := New(name, DefaultPoolWidth)
				Expect(err).NotTo(HaveOccurred())

				w := mustGenerate(8, 0)
				store := &gatedStore{
					MemoryStore: docstore.NewMemoryStore(docstore.MemoryOptions{}),
					blockedID:   w[3].ID,
					gate:        make(chan struct{}),
				}

				done := make(chan error, 1)
				go func() {
					done <- s.Run(ctx, store, collection, w)
				}()

				Consistently(done, 50*time.Millisecond).ShouldNot(Receive())
				Expect(store.Deletes()).To(BeZero(), "delete phase started before the write barrier")

				close(store.gate)
				Eventually(done).Should(Receive(BeNil()))
				Expect(store.Deletes()).To(Equal(int64(8)))
			})
		}
	})

	Describe("New", func() {
		It("builds every named strategy", func() {
			for _, name := range Names() {
				s, err := New(name, 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(s.Name()).To(Equal(name))
			}
		})

		It("rejects unknown names and non-positive widths", func() {
			_, err := New("threaded", 2)
			Expect(err).To(HaveOccurred())

			_, err = New(NamePooled, 0)
			Expect(err).To(HaveOccurred())
		})
	})
})
