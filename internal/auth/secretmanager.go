package auth

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// SecretManager reads secret payloads from Google Secret Manager using
// application default credentials.
type SecretManager struct {
	client *secretmanager.Client
}

// NewSecretManager dials Secret Manager.
func NewSecretManager(ctx context.Context) (*SecretManager, error) {
	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}
	return &SecretManager{client: c}, nil
}

// AccessSecret returns the payload of the given secret version.
func (s *SecretManager) AccessSecret(ctx context.Context, resource string) ([]byte, error) {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return nil, fmt.Errorf("access %s: %w", resource, err)
	}
	return resp.GetPayload().GetData(), nil
}

// Close releases the underlying connection.
func (s *SecretManager) Close() error {
	return s.client.Close()
}
