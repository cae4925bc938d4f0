package testutil

// FixedIDGenerator generates the same correlation id every time.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// always returns the same id. This is useful when a test drives one scope at
// a time and wants to look it up afterwards without threading the id through.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a new fixed id generator.
//
// If id is empty, Generate() returns "test-correlation-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-correlation-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
//
// Implements engine.CorrelationIDGenerator interface.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
