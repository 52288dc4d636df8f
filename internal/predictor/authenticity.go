package predictor

import "context"

// AuthenticityClient calls POST {base}/verify.
type AuthenticityClient struct {
	c *client
}

func NewAuthenticityClient(baseURL string, opts ...Option) *AuthenticityClient {
	return &AuthenticityClient{c: newClient("authenticity", baseURL, opts...)}
}

func (a *AuthenticityClient) Verify(ctx context.Context, req VerifyRequest) (*Verdict, error) {
	var out Verdict
	if err := a.c.post(ctx, "/verify", req, &out); err != nil {
		return nil, err
	}
	if !validConfidence(out.Confidence) {
		return nil, NewError(ErrorBadData, a.c.name, "confidence out of range", nil)
	}
	return &out, nil
}
