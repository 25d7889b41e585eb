package nse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/oi-tracker/internal/config"
	"github.com/marketlens/oi-tracker/internal/models"
)

func testNSEConfig(baseURL string) config.NSEConfig {
	return config.NSEConfig{
		BaseURL:         baseURL,
		OptionChainPath: "/api/option-chain-equities",
		RequestTimeout:  5 * time.Second,
		RequestGap:      time.Millisecond,
		UserAgent:       "test-agent",
	}
}

func TestClient_BootstrapPropagatesCookies(t *testing.T) {
	const chainBody = `{"records":{"expiryDates":["28-Aug-2025"],"underlyingValue":100.5,"timestamp":"25-Aug-2025 15:30:00"},"filtered":{"data":[]}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "session-token"})
			w.WriteHeader(http.StatusOK)
		case "/api/option-chain-equities":
			cookie, err := r.Cookie("nsit")
			if err != nil || cookie.Value != "session-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(chainBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := NewClient(testNSEConfig(server.URL))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Bootstrap(ctx))

	chain, err := client.FetchOptionChain(ctx, "RELIANCE")
	require.NoError(t, err)
	assert.Equal(t, []string{"28-Aug-2025"}, chain.Records.ExpiryDates)
	assert.Equal(t, 100.5, chain.Records.UnderlyingValue)
}

func TestClient_BootstrapIgnoresStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewClient(testNSEConfig(server.URL))
	require.NoError(t, err)

	assert.NoError(t, client.Bootstrap(context.Background()))
}

func TestClient_BootstrapTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := NewClient(testNSEConfig(server.URL))
	require.NoError(t, err)

	assert.Error(t, client.Bootstrap(context.Background()))
}

func TestClient_FetchOptionChainSendsHeaders(t *testing.T) {
	var gotUserAgent, gotSymbol string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotSymbol = r.URL.Query().Get("symbol")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"records":{"expiryDates":["28-Aug-2025"]},"filtered":{"data":[]}}`))
	}))
	defer server.Close()

	client, err := NewClient(testNSEConfig(server.URL))
	require.NoError(t, err)

	_, err = client.FetchOptionChain(context.Background(), "M&M")
	require.NoError(t, err)
	assert.Equal(t, "test-agent", gotUserAgent)
	assert.Equal(t, "M&M", gotSymbol)
}

func TestClient_FetchOptionChainUpstreamStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient(testNSEConfig(server.URL))
	require.NoError(t, err)

	_, err = client.FetchOptionChain(context.Background(), "INFY")
	assert.True(t, errors.Is(err, models.ErrUpstreamStatus))
}

func TestClient_FetchOptionChainMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`<html>blocked</html>`))
	}))
	defer server.Close()

	client, err := NewClient(testNSEConfig(server.URL))
	require.NoError(t, err)

	_, err = client.FetchOptionChain(context.Background(), "TCS")
	assert.True(t, errors.Is(err, models.ErrMalformedPayload))
}

func TestClient_FetchOptionChainDecodesLegs(t *testing.T) {
	const body = `{
		"records":{"expiryDates":["28-Aug-2025","25-Sep-2025"],"underlyingValue":2980.4,"timestamp":"25-Aug-2025 15:30:00"},
		"filtered":{"data":[
			{"strikePrice":2900,"expiryDate":"28-Aug-2025",
			 "CE":{"openInterest":1200,"changeinOpenInterest":150,"totalTradedVolume":540,"impliedVolatility":14.2,"lastPrice":91.5},
			 "PE":{"openInterest":800,"changeinOpenInterest":-40,"totalTradedVolume":310,"impliedVolatility":16.8,"lastPrice":12.3}},
			{"strikePrice":3000,"expiryDate":"28-Aug-2025",
			 "PE":{"openInterest":450,"changeinOpenInterest":20,"totalTradedVolume":95,"impliedVolatility":17.1,"lastPrice":41.0}}
		]}
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client, err := NewClient(testNSEConfig(server.URL))
	require.NoError(t, err)

	chain, err := client.FetchOptionChain(context.Background(), "RELIANCE")
	require.NoError(t, err)
	require.Len(t, chain.Filtered.Data, 2)

	first := chain.Filtered.Data[0]
	require.NotNil(t, first.CE)
	require.NotNil(t, first.PE)
	assert.Equal(t, 1200.0, first.CE.OpenInterest)
	assert.Equal(t, 540.0, first.CE.TotalTradedVolume)
	assert.Equal(t, 800.0, first.PE.OpenInterest)

	second := chain.Filtered.Data[1]
	assert.Nil(t, second.CE)
	require.NotNil(t, second.PE)
	assert.Equal(t, 450.0, second.PE.OpenInterest)
}
