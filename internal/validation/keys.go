// Package validation checks repository names and keys arriving over the
// HTTP API before they reach the key index. The key index itself accepts
// any string, including the empty one.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/grumpyguvner/mailkeys/internal/errors"
)

// Cassandra caps a single key component at 64KiB
const (
	DefaultMaxLength    = 65535
	DefaultMaxBatchSize = 1000
)

// KeyValidator validates values taken from requests
type KeyValidator struct {
	MaxRepositoryLength int
	MaxKeyLength        int
	MaxBatchSize        int
}

// NewKeyValidator creates a validator with default limits
func NewKeyValidator() *KeyValidator {
	return &KeyValidator{
		MaxRepositoryLength: DefaultMaxLength,
		MaxKeyLength:        DefaultMaxLength,
		MaxBatchSize:        DefaultMaxBatchSize,
	}
}

// ValidateRepository checks a repository name
func (v *KeyValidator) ValidateRepository(name string) error {
	return v.validateValue("repository", name, v.MaxRepositoryLength)
}

// ValidateKey checks a single mail key
func (v *KeyValidator) ValidateKey(key string) error {
	return v.validateValue("key", key, v.MaxKeyLength)
}

// ValidateBatch checks every key of a batch store
func (v *KeyValidator) ValidateBatch(keys []string) error {
	if len(keys) == 0 {
		return errors.InvalidArgument("keys must not be empty", map[string]string{"field": "keys"})
	}
	if v.MaxBatchSize > 0 && len(keys) > v.MaxBatchSize {
		return errors.InvalidArgument(
			fmt.Sprintf("batch of %d keys exceeds maximum of %d", len(keys), v.MaxBatchSize),
			map[string]string{"field": "keys"},
		)
	}
	for i, key := range keys {
		if err := v.ValidateKey(key); err != nil {
			appErr, _ := errors.AsAppError(err)
			return errors.InvalidArgument(
				fmt.Sprintf("keys[%d]: %s", i, appErr.Message),
				map[string]interface{}{"field": "keys", "index": i},
			)
		}
	}
	return nil
}

func (v *KeyValidator) validateValue(field, value string, maxLen int) error {
	details := map[string]string{"field": field}

	if value == "" {
		return errors.InvalidArgument(fmt.Sprintf("%s must not be empty", field), details)
	}
	if maxLen > 0 && len(value) > maxLen {
		return errors.InvalidArgument(fmt.Sprintf("%s exceeds %d bytes", field, maxLen), details)
	}
	// CQL text and PostgreSQL TEXT both require valid UTF-8 without NUL
	if !utf8.ValidString(value) {
		return errors.InvalidArgument(fmt.Sprintf("%s must be valid UTF-8", field), details)
	}
	if strings.IndexByte(value, 0) >= 0 {
		return errors.InvalidArgument(fmt.Sprintf("%s must not contain NUL bytes", field), details)
	}
	return nil
}
