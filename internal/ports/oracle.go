package ports

import "context"

// Oracle is the external AI classifier. The pipeline treats it as a black
// box: prompt in, raw text out. Parsing and validation of the verdict
// happen on our side of the boundary.
type Oracle interface {
	Classify(ctx context.Context, prompt string) (string, error)
}
