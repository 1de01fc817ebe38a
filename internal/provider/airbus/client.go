// Package airbus talks to the Airbus OneAtlas authentication, pricing and
// order-property APIs.
package airbus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"example.com/resource-catalogue/internal/credentials"
)

const providerName = "airbus"

// Endpoints groups the Airbus URLs used by the client.
type Endpoints struct {
	Token         string
	Properties    string
	OpticalPrices string
	SARPrices     string
}

// EndpointsFor returns the production endpoints for env "prod" and the
// integration ones otherwise.
func EndpointsFor(env string) Endpoints {
	if env == "prod" {
		return Endpoints{
			Token:         "https://authenticate.foundation.api.oneatlas.airbus.com/auth/realms/IDP/protocol/openid-connect/token",
			Properties:    "https://order.api.oneatlas.airbus.com/api/v1/properties",
			OpticalPrices: "https://order.api.oneatlas.airbus.com/api/v1/prices",
			SARPrices:     "https://sar.api.oneatlas.airbus.com/v1/sar/prices",
		}
	}
	return Endpoints{
		Token:         "https://authenticate-int.idp.private.geoapi-airbusds.com/auth/realms/IDP/protocol/openid-connect/token",
		Properties:    "https://order.api.oneatlas.airbus.com/api/v1/properties",
		OpticalPrices: "https://order.api.oneatlas.airbus.com/api/v1/prices",
		SARPrices:     "https://dev.sar.api.oneatlas.airbus.com/v1/sar/prices",
	}
}

var (
	ErrNoToken      = errors.New("failed to generate access token")
	ErrQuoteMissing = errors.New("quote not found for given acquisition ID")
)

// CountryError reports an end-user country code unknown to Airbus.
type CountryError struct {
	Code  string
	Valid []string
}

func (e *CountryError) Error() string {
	return fmt.Sprintf("End user country code %s is invalid. Valid codes are: %s", e.Code, strings.Join(e.Valid, ", "))
}

// Quote is a price returned by Airbus.
type Quote struct {
	Value decimal.Decimal
	Units string
}

// Client captures the HTTP calls issued toward Airbus.
type Client struct {
	httpClient  *http.Client
	creds       credentials.Provider
	fallbackKey string
	endpoints   Endpoints
	logger      *slog.Logger
}

// NewClient configures a client. fallbackKey is used when the credential
// provider has nothing for the requested workspace.
func NewClient(endpoints Endpoints, creds credentials.Provider, fallbackKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		creds:       creds,
		fallbackKey: fallbackKey,
		endpoints:   endpoints,
		logger:      logger,
	}
}

// Token exchanges the workspace API key (or the service key when workspace
// is empty) for a bearer token.
func (c *Client) Token(ctx context.Context, workspace string) (string, error) {
	apiKey, err := c.creds.APIKey(ctx, workspace, providerName)
	if err != nil {
		if c.fallbackKey == "" {
			return "", fmt.Errorf("airbus api key: %w", err)
		}
		apiKey = c.fallbackKey
	}

	form := url.Values{}
	form.Set("apikey", apiKey)
	form.Set("grant_type", "api_key")
	form.Set("client_id", "IDP")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: airbus responded with %s", ErrNoToken, resp.Status)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if payload.AccessToken == "" {
		return "", ErrNoToken
	}
	return payload.AccessToken, nil
}

// Price posts a price request and decodes the answer into out.
func (c *Client) Price(ctx context.Context, endpoint string, body any, token string, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode price request: %w", err)
	}
	c.logger.Debug("airbus price request", "url", endpoint, "body", string(data))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("airbus price: responded with %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode price: %w", err)
	}
	return nil
}

// QuoteSAR prices a single radar acquisition.
func (c *Client) QuoteSAR(ctx context.Context, acquisitionID, licenceWire string) (Quote, error) {
	token, err := c.Token(ctx, "")
	if err != nil {
		return Quote{}, err
	}
	body := map[string]any{
		"acquisitions":  []string{acquisitionID},
		"orderTemplate": licenceWire,
	}
	var prices []struct {
		AcquisitionID string `json:"acquisitionId"`
		Price         struct {
			Total    decimal.Decimal `json:"total"`
			Currency string          `json:"currency"`
		} `json:"price"`
	}
	if err := c.Price(ctx, c.endpoints.SARPrices, body, token, &prices); err != nil {
		return Quote{}, err
	}
	for _, p := range prices {
		if p.AcquisitionID == acquisitionID {
			return Quote{Value: p.Price.Total, Units: p.Price.Currency}, nil
		}
	}
	return Quote{}, ErrQuoteMissing
}

// QuoteOptical prices an optical order built with OpticalPriceRequest.
func (c *Client) QuoteOptical(ctx context.Context, body map[string]any) (Quote, error) {
	token, err := c.Token(ctx, "")
	if err != nil {
		return Quote{}, err
	}
	var price struct {
		Currency    string          `json:"currency"`
		TotalAmount decimal.Decimal `json:"totalAmount"`
	}
	if err := c.Price(ctx, c.endpoints.OpticalPrices, body, token, &price); err != nil {
		return Quote{}, err
	}
	if price.Currency == "" {
		return Quote{}, ErrQuoteMissing
	}
	return Quote{Value: price.TotalAmount, Units: price.Currency}, nil
}

// ValidateCountry checks an end-user country code against the live list.
func (c *Client) ValidateCountry(ctx context.Context, code string) error {
	token, err := c.Token(ctx, "")
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.Properties, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch properties: airbus responded with %s", resp.Status)
	}
	var payload struct {
		Properties []struct {
			Key    string `json:"key"`
			Values []struct {
				ID string `json:"id"`
			} `json:"values"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("decode properties: %w", err)
	}

	var valid []string
	for _, prop := range payload.Properties {
		if prop.Key != "countries" {
			continue
		}
		for _, v := range prop.Values {
			if v.ID == code {
				return nil
			}
			valid = append(valid, v.ID)
		}
		break
	}
	return &CountryError{Code: code, Valid: valid}
}

// FetchAsset downloads an asset behind an Airbus bearer token.
func (c *Client) FetchAsset(ctx context.Context, href string) ([]byte, string, error) {
	token, err := c.Token(ctx, "")
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch asset: airbus responded with %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read asset: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}
