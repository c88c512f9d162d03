package fallback

import (
	"fmt"
	"strings"

	"contentforge/internal/model"
	"contentforge/pkg/provider"
)

// AttemptFailure records why one candidate did not produce a result.
type AttemptFailure struct {
	Provider model.ProviderType `json:"provider"`
	Model    string             `json:"model,omitempty"`
	Kind     provider.ErrorKind `json:"kind"`
	Message  string             `json:"message"`
}

// ExhaustedError is returned when every candidate provider failed or was
// unavailable. It carries the full attempt trail for the task record.
type ExhaustedError struct {
	Attempts []AttemptFailure
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all providers exhausted: no candidates attempted"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s (%s)", a.Provider, a.Message, a.Kind))
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}
