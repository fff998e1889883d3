package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Source describes where the token registry comes from. The first
// non-empty field wins, in the order JSON, Payload, SecretName.
type Source struct {
	// JSON is an inline {label: token} object (MCP_TOKENS_JSON).
	JSON string
	// Payload is the same object injected by the platform (MCP_TOKENS_SECRET_PAYLOAD).
	Payload string
	// SecretName names a Secret Manager secret holding the object.
	SecretName    string
	SecretVersion string
	ProjectID     string
}

// SecretReader fetches a secret payload by resource name
// ("projects/<p>/secrets/<name>/versions/<v>").
type SecretReader interface {
	AccessSecret(ctx context.Context, resource string) ([]byte, error)
}

// SecretResource formats a Secret Manager version resource name.
func SecretResource(project, name, version string) string {
	if version == "" {
		version = "latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, name, version)
}

// Describe names the source that LoadRegistry will use, without values.
func (s Source) Describe() string {
	switch {
	case s.JSON != "":
		return "MCP_TOKENS_JSON"
	case s.Payload != "":
		return "MCP_TOKENS_SECRET_PAYLOAD"
	case s.SecretName != "":
		return "secret-manager:" + s.SecretName
	default:
		return "none"
	}
}

func (s Source) configured() int {
	n := 0
	for _, v := range []string{s.JSON, s.Payload, s.SecretName} {
		if v != "" {
			n++
		}
	}
	return n
}

// LoadRegistry resolves src into a Registry. reader is only used for the
// Secret Manager source and may be nil otherwise.
func LoadRegistry(ctx context.Context, src Source, reader SecretReader, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if src.configured() > 1 {
		logger.Warn("multiple token sources configured, using highest priority",
			zap.String("source", src.Describe()))
	}

	var payload string
	switch {
	case src.JSON != "":
		payload = src.JSON
	case src.Payload != "":
		payload = src.Payload
	case src.SecretName != "":
		if reader == nil {
			return nil, fmt.Errorf("token secret %q configured but no secret reader available", src.SecretName)
		}
		if src.ProjectID == "" {
			return nil, fmt.Errorf("token secret %q requires GCP_PROJECT_ID or BQ_PROJECT_ID", src.SecretName)
		}
		data, err := reader.AccessSecret(ctx, SecretResource(src.ProjectID, src.SecretName, src.SecretVersion))
		if err != nil {
			return nil, fmt.Errorf("read token secret: %w", err)
		}
		payload = string(data)
	default:
		return nil, ErrEmptyRegistry
	}

	tokens, err := ParseTokensJSON(payload)
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(tokens)
	if err != nil {
		return nil, err
	}
	logger.Info("token registry loaded",
		zap.String("source", src.Describe()),
		zap.Int("tokens", reg.Len()),
		zap.Strings("labels", reg.Labels()))
	return reg, nil
}

// ParseTokensJSON decodes a {label: token} object. Entries whose label or
// token is not a string, or is blank after trimming, are skipped.
func ParseTokensJSON(payload string) (map[string]string, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		var decoded any
		if json.Unmarshal([]byte(payload), &decoded) == nil {
			return nil, fmt.Errorf("MCP tokens must be a JSON object mapping {label: token}")
		}
		return nil, fmt.Errorf("failed to parse MCP tokens JSON: %w", err)
	}

	out := make(map[string]string, len(raw))
	for label, v := range raw {
		token, ok := v.(string)
		if !ok {
			continue
		}
		label = strings.TrimSpace(label)
		token = strings.TrimSpace(token)
		if label != "" && token != "" {
			out[label] = token
		}
	}
	return out, nil
}
