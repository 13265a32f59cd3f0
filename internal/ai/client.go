package ai

import "context"

// Client is a reasoning-model backend. Text completion is mandatory; vision
// is a capability callers probe with SupportsVision before sending images.
type Client interface {
	Name() string
	SupportsVision() bool
	CompleteText(ctx context.Context, req TextRequest) (string, Usage, error)
	CompleteVision(ctx context.Context, req VisionRequest) (string, Usage, error)
}

// TextRequest is a single text completion call.
type TextRequest struct {
	System   string
	Prompt   string
	JSONMode bool // ask the backend to emit valid JSON
}

// VisionRequest pairs an image with an instruction prompt.
type VisionRequest struct {
	Image  []byte
	MIME   string
	System string
	Prompt string
}

// Usage reports the token counts of one model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
