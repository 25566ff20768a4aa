package automation

import (
	"errors"
	"fmt"
	"log"
)

// Strategy is one named way of performing a UI step. Apply returns nil when
// the step committed.
type Strategy struct {
	Name  string
	Apply func() error
}

// runStrategies tries each strategy in order and stops at the first that
// succeeds, returning its name. Exhausting the list yields a
// NavigationError carrying every attempted strategy name, so callers can
// tell "no strategy worked" apart from other faults.
func runStrategies(step string, strategies []Strategy) (string, error) {
	if len(strategies) == 0 {
		return "", &NavigationError{Step: step, Err: errors.New("no strategies defined")}
	}

	var lastErr error
	attempts := make([]string, 0, len(strategies))
	for _, s := range strategies {
		attempts = append(attempts, s.Name)
		if err := s.Apply(); err != nil {
			log.Printf("Step %q: strategy %q failed: %v", step, s.Name, err)
			lastErr = err
			continue
		}
		return s.Name, nil
	}

	return "", &NavigationError{
		Step:     step,
		Attempts: attempts,
		Err:      fmt.Errorf("all %d strategies exhausted: %w", len(strategies), lastErr),
	}
}
