package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sweetpotato0/genflow/fault"
	"github.com/sweetpotato0/genflow/provider"
	"github.com/sweetpotato0/genflow/request"
)

// The SDK does not cover image-output generation or the long-running video
// operations surface, so those calls go through the REST API directly.
const restBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// APIError is a structured REST failure. It exposes the HTTP status so the
// classifier can use the code instead of matching message text.
type APIError struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error (code %d %s): %s", e.Code, e.Status, e.Message)
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.Code
}

type inlineData struct {
	MIMEType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type restPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type restContent struct {
	Parts []restPart `json:"parts"`
}

type restGenerateRequest struct {
	Contents         []restContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities,omitempty"`
	} `json:"generationConfig"`
}

type restGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []restPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// EditImage implements provider.ImageEditor: instructions plus an image in,
// the edited image bytes out.
func (p *Provider) EditImage(ctx context.Context, instructions string, image request.Attachment) ([]byte, error) {
	if image.IsText() || len(image.Data) == 0 {
		return nil, fmt.Errorf("image attachment with data is required")
	}

	body := restGenerateRequest{
		Contents: []restContent{{
			Parts: []restPart{
				{Text: instructions},
				{InlineData: &inlineData{
					MIMEType: image.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(image.Data),
				}},
			},
		}},
	}
	body.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}

	var resp restGenerateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", restBaseURL, p.config.ImageModel)
	if err := p.postJSON(ctx, url, body, &resp); err != nil {
		return nil, err
	}

	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode image payload: %w", err)
			}
			return data, nil
		}
	}
	return nil, fault.New(fault.KindEmptyResponse, "The model returned no edited image.")
}

type videoInstance struct {
	Prompt string      `json:"prompt"`
	Image  *inlineData `json:"image,omitempty"`
}

type startVideoRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters struct {
		AspectRatio string `json:"aspectRatio,omitempty"`
	} `json:"parameters"`
}

type operationResponse struct {
	Name     string    `json:"name"`
	Done     bool      `json:"done"`
	Error    *APIError `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// StartMediaJob implements provider.MediaGenerator: it submits an
// asynchronous video job and returns its operation handle.
func (p *Provider) StartMediaJob(ctx context.Context, req *provider.MediaRequest) (*provider.Handle, error) {
	if req == nil || req.Instructions == "" {
		return nil, fmt.Errorf("media request with instructions is required")
	}

	body := startVideoRequest{
		Instances: []videoInstance{{Prompt: req.Instructions}},
	}
	if req.Image != nil && len(req.Image.Data) > 0 {
		body.Instances[0].Image = &inlineData{
			MIMEType: req.Image.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(req.Image.Data),
		}
	}
	body.Parameters.AspectRatio = req.AspectRatio

	var op operationResponse
	url := fmt.Sprintf("%s/models/%s:predictLongRunning", restBaseURL, p.config.VideoModel)
	if err := p.postJSON(ctx, url, body, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		return nil, fmt.Errorf("video job returned no operation name")
	}
	return handleFromOperation(&op), nil
}

// PollMediaJob refreshes the operation handle.
func (p *Provider) PollMediaJob(ctx context.Context, h *provider.Handle) (*provider.Handle, error) {
	if h == nil || h.Name == "" {
		return nil, fmt.Errorf("operation handle is required")
	}

	var op operationResponse
	if err := p.getJSON(ctx, fmt.Sprintf("%s/%s", restBaseURL, h.Name), &op); err != nil {
		return nil, err
	}
	if op.Error != nil {
		return nil, op.Error
	}
	return handleFromOperation(&op), nil
}

// FetchMedia downloads the finished result, authenticating with the API key.
func (p *Provider) FetchMedia(ctx context.Context, uri string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", p.config.APIKey)

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(httpResp)
	}
	return io.ReadAll(httpResp.Body)
}

func handleFromOperation(op *operationResponse) *provider.Handle {
	h := &provider.Handle{Name: op.Name, Done: op.Done}
	if op.Response != nil {
		samples := op.Response.GenerateVideoResponse.GeneratedSamples
		if len(samples) > 0 {
			h.URI = samples[0].Video.URI
		}
	}
	return h
}

func (p *Provider) postJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return p.doJSON(httpReq, out)
}

func (p *Provider) getJSON(ctx context.Context, url string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return p.doJSON(httpReq, out)
}

func (p *Provider) doJSON(httpReq *http.Request, out any) error {
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.config.APIKey)

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return decodeAPIError(httpResp)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func decodeAPIError(httpResp *http.Response) error {
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("gemini api error (status %d)", httpResp.StatusCode)
	}
	var wrapper struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(respBody, &wrapper); err == nil && wrapper.Error != nil {
		if wrapper.Error.Code == 0 {
			wrapper.Error.Code = httpResp.StatusCode
		}
		return wrapper.Error
	}
	return &APIError{Code: httpResp.StatusCode, Message: string(respBody)}
}
