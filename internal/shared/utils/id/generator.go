package id

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// Strategy identifies the identifier generation algorithm to use.
type Strategy int

const (
	// StrategyKSUID generates lexicographically sortable identifiers using KSUID.
	StrategyKSUID Strategy = iota
	// StrategyUUIDv7 generates time-ordered identifiers using UUID version 7.
	StrategyUUIDv7
)

var defaultGenerator = &Generator{strategy: StrategyKSUID}

// Generator produces identifiers for submissions, quality-check records and requests.
type Generator struct {
	mu       sync.RWMutex
	strategy Strategy
}

// SetStrategy configures the generation strategy for the default generator.
func SetStrategy(strategy Strategy) {
	defaultGenerator.mu.Lock()
	defaultGenerator.strategy = strategy
	defaultGenerator.mu.Unlock()
}

// ParseStrategy maps a config value ("ksuid", "uuidv7") to a Strategy.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "ksuid":
		return StrategyKSUID, nil
	case "uuidv7", "uuid":
		return StrategyUUIDv7, nil
	default:
		return StrategyKSUID, fmt.Errorf("unknown id strategy %q", raw)
	}
}

// NewSubmissionID generates an identifier for a work submission.
func NewSubmissionID() string {
	return defaultGenerator.newIdentifier("sub")
}

// NewRecordID generates an identifier for a persisted quality-check record.
func NewRecordID() string {
	return defaultGenerator.newIdentifier("qc")
}

// NewLogID generates a correlation id for a single inbound request.
func NewLogID() string {
	return defaultGenerator.newIdentifier("log")
}

// NewRequestIDWithLogID builds a model-call request id, nesting it under logID when present.
func NewRequestIDWithLogID(logID string) string {
	requestID := defaultGenerator.newIdentifier("llm")
	if trimmed := strings.TrimSpace(logID); trimmed != "" {
		return trimmed + ":" + requestID
	}
	return requestID
}

func (g *Generator) newIdentifier(prefix string) string {
	g.mu.RLock()
	strategy := g.strategy
	g.mu.RUnlock()

	var body string
	switch strategy {
	case StrategyUUIDv7:
		uuidv7, err := uuid.NewV7()
		if err == nil {
			body = uuidv7.String()
			break
		}
		body = ksuid.New().String()
	default:
		body = ksuid.New().String()
	}

	return fmt.Sprintf("%s-%s", prefix, body)
}
