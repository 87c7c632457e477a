package pipeline

import "github.com/google/uuid"

// randomID mints the identifier for a pipeline-created row (a
// GeneratedFile or a child File).
func randomID() string {
	return uuid.NewString()
}
