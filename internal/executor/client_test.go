package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/resource-catalogue/internal/logging"
)

func TestExecute_PostsAsyncRequest(t *testing.T) {
	var (
		gotPath    string
		gotHeaders http.Header
		gotBody    map[string]map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"jobID":"123"}`))
	}))
	defer srv.Close()

	endUsers := `[{"endUserName":"bob","country":"GB"}]`
	c := NewClient(srv.URL+"/", time.Second, logging.Discard())
	resp, err := c.Execute(context.Background(), Invocation{
		ProviderWorkspace: "airbus",
		Workflow:          "airbus-optical-adaptor",
		Authorization:     "Bearer abc",
		Inputs: Inputs{
			Workspace:            "ws",
			WorkspaceBucket:      "bucket",
			CommercialDataBucket: "airbus-commercial-data",
			PulsarURL:            "pulsar://x",
			ProductBundle:        "Analytic",
			STACKey:              "s3://bucket/ws/item.json",
			Coordinates:          "[]",
			EndUsers:             &endUsers,
			Licence:              "standard",
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobID":"123"}`, string(resp))

	assert.Equal(t, "/airbus/processes/airbus-optical-adaptor/execution", gotPath)
	assert.Equal(t, "respond-async", gotHeaders.Get("Prefer"))
	assert.Equal(t, "Bearer abc", gotHeaders.Get("Authorization"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))

	inputs := gotBody["inputs"]
	assert.Equal(t, "ws", inputs["workspace"])
	assert.Equal(t, "", inputs["cluster_prefix"])
	assert.Equal(t, "[]", inputs["coordinates"])
	assert.Equal(t, endUsers, inputs["end_users"])
	assert.Equal(t, "standard", inputs["licence"])
}

func TestExecute_OmitsOptionalInputs(t *testing.T) {
	var inputs map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		inputs = body["inputs"]
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logging.Discard())
	resp, err := c.Execute(context.Background(), Invocation{ProviderWorkspace: "planet", Workflow: "planet-adaptor"})
	require.NoError(t, err)
	assert.Equal(t, "null", string(resp))
	assert.NotContains(t, inputs, "end_users")
	assert.NotContains(t, inputs, "licence")
}

func TestExecute_Non2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, logging.Discard())
	_, err := c.Execute(context.Background(), Invocation{ProviderWorkspace: "airbus", Workflow: "x"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Equal(t, "upstream down", statusErr.Body)
}

func TestExecute_TimeoutIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond, logging.Discard())
	_, err := c.Execute(context.Background(), Invocation{ProviderWorkspace: "airbus", Workflow: "x"})
	assert.Error(t, err)
}
