// Package credentials resolves provider API keys and contract IDs for a
// workspace.
package credentials

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrNotFound is returned when no credential is configured for a workspace.
var ErrNotFound = errors.New("credential not found")

// Contracts maps contract IDs to their labels, split by product line.
type Contracts struct {
	Optical map[string]string `json:"optical"`
	SAR     map[string]string `json:"sar"`
}

// Provider is the only way the rest of the service reaches secrets.
type Provider interface {
	APIKey(ctx context.Context, workspace, provider string) (string, error)
	Contracts(ctx context.Context, workspace, provider string) (Contracts, error)
}

// PadSource returns the base64 one-time pad for a workspace and provider.
type PadSource interface {
	Pad(ctx context.Context, workspace, provider string) (string, error)
}

// Env reads credentials from environment variables:
//
//	<PROVIDER>_API_KEY[_<WORKSPACE>]    API key (or OTP ciphertext)
//	<PROVIDER>_CONTRACTS[_<WORKSPACE>]  JSON encoded Contracts
//	<PROVIDER>_OTP[_<WORKSPACE>]        base64 one-time pad
//
// Workspace specific variables win over the provider-wide ones.
type Env struct {
	Lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{Lookup: os.LookupEnv}
}

func (e *Env) APIKey(_ context.Context, workspace, provider string) (string, error) {
	return e.lookup(provider, "API_KEY", workspace)
}

func (e *Env) Contracts(_ context.Context, workspace, provider string) (Contracts, error) {
	raw, err := e.lookup(provider, "CONTRACTS", workspace)
	if err != nil {
		return Contracts{}, err
	}
	var contracts Contracts
	if err := json.Unmarshal([]byte(raw), &contracts); err != nil {
		return Contracts{}, fmt.Errorf("decode %s contracts: %w", provider, err)
	}
	return contracts, nil
}

func (e *Env) Pad(_ context.Context, workspace, provider string) (string, error) {
	return e.lookup(provider, "OTP", workspace)
}

func (e *Env) lookup(provider, suffix, workspace string) (string, error) {
	base := envName(provider) + "_" + suffix
	if workspace != "" {
		if v, ok := e.Lookup(base + "_" + envName(workspace)); ok && v != "" {
			return v, nil
		}
	}
	if v, ok := e.Lookup(base); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, base)
}

func envName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}

// OneTimePad decrypts API keys stored as XOR ciphertexts. Contracts are
// passed through from the ciphertext provider unchanged.
type OneTimePad struct {
	ciphertexts Provider
	pads        PadSource
}

func NewOneTimePad(ciphertexts Provider, pads PadSource) *OneTimePad {
	return &OneTimePad{ciphertexts: ciphertexts, pads: pads}
}

func (o *OneTimePad) APIKey(ctx context.Context, workspace, provider string) (string, error) {
	ciphertext, err := o.ciphertexts.APIKey(ctx, workspace, provider)
	if err != nil {
		return "", err
	}
	pad, err := o.pads.Pad(ctx, workspace, provider)
	if err != nil {
		return "", err
	}
	return Decrypt(ciphertext, pad)
}

func (o *OneTimePad) Contracts(ctx context.Context, workspace, provider string) (Contracts, error) {
	return o.ciphertexts.Contracts(ctx, workspace, provider)
}

// Decrypt XORs a base64 ciphertext with a base64 pad of the same length.
// Plaintext that is not valid UTF-8 is returned hex encoded.
func Decrypt(ciphertextB64, padB64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	pad, err := base64.StdEncoding.DecodeString(padB64)
	if err != nil {
		return "", fmt.Errorf("decode pad: %w", err)
	}
	if len(ciphertext) != len(pad) {
		return "", errors.New("ciphertext and pad must be the same length")
	}
	plain := make([]byte, len(ciphertext))
	for i := range ciphertext {
		plain[i] = ciphertext[i] ^ pad[i]
	}
	if !utf8.Valid(plain) {
		return hex.EncodeToString(plain), nil
	}
	return string(plain), nil
}
