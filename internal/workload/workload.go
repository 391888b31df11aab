// Package workload builds the fixed (id, document) sequences every strategy runs against.
package workload

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"go-docbench/pkg/docstore"

	"github.com/google/uuid"
	"go.jetify.com/typeid"
)

// IDScheme selects how work item ids are generated.
type IDScheme string

const (
	// TypeID produces time-ordered ids such as doc_01h455vb4pex5vsknk084sn02q.
	TypeID IDScheme = "typeid"
	// UUIDv1 produces time-based UUIDs.
	UUIDv1 IDScheme = "uuid1"

	idPrefix = "doc"
)

type (

	// WorkItem is one document to write and then delete.
	WorkItem struct {
		ID  string
		Doc docstore.Document
	}

	// Workload is the ordered sequence of items submitted in one trial.
	Workload []WorkItem

	// ValidationError reports an invalid generator parameter
	ValidationError struct {
		Field string
		Value any
	}

	// Option tunes Generate.
	Option func(*generator)

	generator struct {
		scheme  IDScheme
		seed    int64
		fixture []byte
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workload %s: %v", e.Field, e.Value)
}

// IsValidationError checks if the error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// WithIDScheme selects the id scheme. The default is TypeID.
func WithIDScheme(scheme IDScheme) Option {
	return func(g *generator) { g.scheme = scheme }
}

// WithSeed seeds the pseudo-random payload bytes used when no fixture is given.
func WithSeed(seed int64) Option {
	return func(g *generator) { g.seed = seed }
}

// WithFixture builds sized payloads from fixture instead of pseudo-random bytes.
func WithFixture(fixture []byte) Option {
	return func(g *generator) { g.fixture = fixture }
}

// Record is the document used when a parameter set has no payload size.
func Record() docstore.Document {
	return docstore.Document{"first": "Alan", "middle": "Mathison", "last": "Turing", "born": 1912}
}

// Generate returns count items with unique ids. With size > 0 each document is
// {"payload": <size bytes>}; with size == 0 each document is Record().
// Every item of one workload shares the same payload bytes.
func Generate(count, size int, opts ...Option) (Workload, error) {
	if count <= 0 {
		return nil, &ValidationError{Field: "count", Value: count}
	}
	if size < 0 {
		return nil, &ValidationError{Field: "size", Value: size}
	}

	g := &generator{scheme: TypeID, seed: 1}
	for _, opt := range opts {
		opt(g)
	}
	if g.scheme != TypeID && g.scheme != UUIDv1 {
		return nil, &ValidationError{Field: "id scheme", Value: g.scheme}
	}

	var payload []byte
	if size > 0 {
		payload = g.payload(size)
	}

	w := make(Workload, count)
	seen := make(map[string]struct{}, count)
	for i := range w {
		id, err := g.newID()
		if err != nil {
			return nil, fmt.Errorf("generate id %d: %w", i, err)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("generate id %d: duplicate %s", i, id)
		}
		seen[id] = struct{}{}

		doc := Record()
		if payload != nil {
			doc = docstore.Document{"payload": payload}
		}
		w[i] = WorkItem{ID: id, Doc: doc}
	}
	return w, nil
}

func (g *generator) newID() (string, error) {
	switch g.scheme {
	case UUIDv1:
		u, err := uuid.NewUUID()
		if err != nil {
			return "", err
		}
		return u.String(), nil
	default:
		tid, err := typeid.WithPrefix(idPrefix)
		if err != nil {
			return "", err
		}
		return tid.String(), nil
	}
}

func (g *generator) payload(size int) []byte {
	if len(g.fixture) > 0 {
		if len(g.fixture) >= size {
			return bytes.Clone(g.fixture[:size])
		}
		// Tile the fixture up to size
		return bytes.Repeat(g.fixture, size/len(g.fixture)+1)[:size]
	}

	b := make([]byte, size)
	rand.New(rand.NewSource(g.seed)).Read(b)
	return b
}

// IDs returns the ids of w in order.
func (w Workload) IDs() []string {
	ids := make([]string, len(w))
	for i, item := range w {
		ids[i] = item.ID
	}
	return ids
}

// LoadFixture reads the payload fixture at path. A missing or empty fixture is an error.
func LoadFixture(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fixture %s is empty", path)
	}
	return data, nil
}
