// Package provider defines the contracts the pipeline expects from a
// generative-model service. Implementations live under contrib/provider.
package provider

import (
	"context"

	"github.com/sweetpotato0/genflow/request"
	"github.com/sweetpotato0/genflow/response"
)

// Generator performs synchronous structured generation.
type Generator interface {
	// GenerateContent executes one generation call and returns the raw result.
	GenerateContent(ctx context.Context, req *request.Request) (*response.Generation, error)
}

// ImageEditor performs synchronous media editing: instructions plus an image
// payload in, edited image bytes out.
type ImageEditor interface {
	EditImage(ctx context.Context, instructions string, image request.Attachment) ([]byte, error)
}

// MediaRequest describes an asynchronous media-generation job.
type MediaRequest struct {
	Instructions string
	Image        *request.Attachment // optional seed image
	AspectRatio  string
}

// Handle is an opaque reference to an in-progress asynchronous job. It is
// refreshed by polling until Done; a finished handle carries the result URI.
type Handle struct {
	Name string
	Done bool
	URI  string
}

// MediaGenerator runs asynchronous media jobs: start returns a handle
// immediately, the handle is refreshed by polling, and the finished result is
// fetched by URI using the shared credential.
type MediaGenerator interface {
	StartMediaJob(ctx context.Context, req *MediaRequest) (*Handle, error)
	PollMediaJob(ctx context.Context, h *Handle) (*Handle, error)
	FetchMedia(ctx context.Context, uri string) ([]byte, error)
}
