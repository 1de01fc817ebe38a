package airbus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/resource-catalogue/internal/credentials"
	"example.com/resource-catalogue/internal/logging"
	"example.com/resource-catalogue/internal/registry"
)

type mockCreds struct {
	mock.Mock
}

func (m *mockCreds) APIKey(ctx context.Context, workspace, provider string) (string, error) {
	args := m.Called(ctx, workspace, provider)
	return args.String(0), args.Error(1)
}

func (m *mockCreds) Contracts(ctx context.Context, workspace, provider string) (credentials.Contracts, error) {
	args := m.Called(ctx, workspace, provider)
	return args.Get(0).(credentials.Contracts), args.Error(1)
}

func fakeAirbus(t *testing.T) (*httptest.Server, Endpoints) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.PostForm.Get("apikey") != "good-key" || r.PostForm.Get("grant_type") != "api_key" || r.PostForm.Get("client_id") != "IDP" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("/properties", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"properties":[{"key":"other","values":[{"id":"XX"}]},{"key":"countries","values":[{"id":"GB"},{"id":"FR"}]}]}`))
	})
	mux.HandleFunc("/sar", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Single User License", body["orderTemplate"])
		_, _ = w.Write([]byte(`[{"acquisitionId":"other","price":{"total":1,"currency":"EUR"}},{"acquisitionId":"acq-1","price":{"total":1234.56,"currency":"EUR"}}]`))
	})
	mux.HandleFunc("/optical", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CTR", body["contractId"])
		_, _ = w.Write([]byte(`{"currency":"GBP","totalAmount":99.5}`))
	})
	mux.HandleFunc("/asset", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, Endpoints{
		Token:         srv.URL + "/token",
		Properties:    srv.URL + "/properties",
		OpticalPrices: srv.URL + "/optical",
		SARPrices:     srv.URL + "/sar",
	}
}

func newTestClient(t *testing.T, creds credentials.Provider, fallback string) (*Client, *httptest.Server) {
	srv, endpoints := fakeAirbus(t)
	return NewClient(endpoints, creds, fallback, logging.Discard()), srv
}

func TestToken_UsesCredentialProvider(t *testing.T) {
	creds := new(mockCreds)
	creds.On("APIKey", mock.Anything, "ws", "airbus").Return("good-key", nil)
	c, _ := newTestClient(t, creds, "")

	token, err := c.Token(context.Background(), "ws")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	creds.AssertExpectations(t)
}

func TestToken_FallbackKeyAndFailures(t *testing.T) {
	creds := new(mockCreds)
	creds.On("APIKey", mock.Anything, "", "airbus").Return("", credentials.ErrNotFound)

	c, _ := newTestClient(t, creds, "good-key")
	token, err := c.Token(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	c, _ = newTestClient(t, creds, "")
	_, err = c.Token(context.Background(), "")
	assert.ErrorIs(t, err, credentials.ErrNotFound)

	c, _ = newTestClient(t, creds, "bad-key")
	_, err = c.Token(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoToken)
}

func serviceCreds() *mockCreds {
	creds := new(mockCreds)
	creds.On("APIKey", mock.Anything, "", "airbus").Return("good-key", nil)
	return creds
}

func TestValidateCountry(t *testing.T) {
	c, _ := newTestClient(t, serviceCreds(), "")

	require.NoError(t, c.ValidateCountry(context.Background(), "GB"))

	err := c.ValidateCountry(context.Background(), "XX")
	var countryErr *CountryError
	require.ErrorAs(t, err, &countryErr)
	assert.Equal(t, []string{"GB", "FR"}, countryErr.Valid)
	assert.Equal(t, "End user country code XX is invalid. Valid codes are: GB, FR", err.Error())
}

func TestQuoteSAR(t *testing.T) {
	c, _ := newTestClient(t, serviceCreds(), "")

	q, err := c.QuoteSAR(context.Background(), "acq-1", "Single User License")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", q.Value.String())
	assert.Equal(t, "EUR", q.Units)

	_, err = c.QuoteSAR(context.Background(), "missing", "Single User License")
	assert.ErrorIs(t, err, ErrQuoteMissing)
}

func TestQuoteOptical(t *testing.T) {
	c, _ := newTestClient(t, serviceCreds(), "")
	body, err := OpticalPriceRequest(registry.FamilyOpticalPHR, "CTR", []any{}, "standard", "", "DS_1")
	require.NoError(t, err)

	q, err := c.QuoteOptical(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "99.5", q.Value.String())
	assert.Equal(t, "GBP", q.Units)
}

func TestFetchAsset(t *testing.T) {
	c, srv := newTestClient(t, serviceCreds(), "")

	body, contentType, err := c.FetchAsset(context.Background(), srv.URL+"/asset")
	require.NoError(t, err)
	assert.Equal(t, "png", string(body))
	assert.Equal(t, "image/png", contentType)
}

func TestEndpointsFor(t *testing.T) {
	assert.Contains(t, EndpointsFor("prod").Token, "authenticate.foundation.api.oneatlas.airbus.com")
	assert.Contains(t, EndpointsFor("dev").Token, "authenticate-int.idp.private.geoapi-airbusds.com")
	assert.Contains(t, EndpointsFor("dev").SARPrices, "dev.sar.api")
}
