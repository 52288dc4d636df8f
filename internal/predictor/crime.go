package predictor

import (
	"context"
	"strings"
)

// CrimeClient calls POST {base}/classify.
type CrimeClient struct {
	c *client
}

func NewCrimeClient(baseURL string, opts ...Option) *CrimeClient {
	return &CrimeClient{c: newClient("crime", baseURL, opts...)}
}

func (cc *CrimeClient) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	var out Classification
	if err := cc.c.post(ctx, "/classify", req, &out); err != nil {
		return nil, err
	}
	out.CrimeType = strings.TrimSpace(out.CrimeType)
	if out.CrimeType == "" {
		return nil, NewError(ErrorBadData, cc.c.name, "missing crime type", nil)
	}
	if !validConfidence(out.Confidence) {
		return nil, NewError(ErrorBadData, cc.c.name, "confidence out of range", nil)
	}
	return &out, nil
}
