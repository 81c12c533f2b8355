package client

import "context"

// VLMClient is the boundary to an external vision-language inference service.
// It takes a prompt plus a base64-encoded image and returns the raw model
// output text; all response parsing happens on this side of the boundary.
type VLMClient interface {
	Query(ctx context.Context, model, prompt, imageB64 string) (string, error)
}
