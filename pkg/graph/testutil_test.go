package graph

import (
	"context"
)

// Test state types shared across tests.

// Counter is a minimal state for increment pipelines.
type Counter struct {
	Value int
}

// Flow tracks which nodes ran, plus routing inputs.
type Flow struct {
	Progress []string
	GoLeft   bool
	Count    int
}

func increment(_ Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

func passthrough[S any](_ Context, s S) (S, error) {
	return s, nil
}

// makeTrackingNode records its execution in the state and in tracker.
func makeTrackingNode(name string, tracker *[]string) NodeFunc[Flow] {
	return func(_ Context, s Flow) (Flow, error) {
		if tracker != nil {
			*tracker = append(*tracker, name)
		}
		s.Progress = append(s.Progress, name)
		return s, nil
	}
}

func makeFailingNode(err error) NodeFunc[Flow] {
	return func(_ Context, s Flow) (Flow, error) {
		return s, err
	}
}

func makePanicNode(value any) NodeFunc[Flow] {
	return func(_ Context, s Flow) (Flow, error) {
		panic(value)
	}
}

func testCtx() Context {
	return NewContext(context.Background())
}
