package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog/log"
)

// SecretGetter is the slice of the Secrets Manager client the loader needs.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// DecodeKey parses a base64 (std or url, padded or raw) master key.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			if len(b) != KeySize {
				return nil, ErrKeySize
			}
			return b, nil
		}
	}
	return nil, fmt.Errorf("vault: master key is not valid base64")
}

// KeyFromSecretsManager fetches the base64 master key stored as the string
// value of secretID.
func KeyFromSecretsManager(ctx context.Context, client SecretGetter, secretID string) ([]byte, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("vault: get secret: %w", err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("vault: secret has no string value")
	}
	key, err := DecodeKey(*out.SecretString)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("🔐 Vault master key loaded from Secrets Manager")
	return key, nil
}
