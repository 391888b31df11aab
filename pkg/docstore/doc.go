// Package docstore defines the document store capability the benchmark drives and the
// in-memory backend. Network backends live in subpackages: postgres, mongo, firestore
// and grpc.
//
// Every backend exposes the blocking Store interface. Async adapts any Store into the
// suspending AsyncStore form used by the cooperative strategy, and stores that can count
// a collection implement Counter so trial isolation can be checked.
package docstore
