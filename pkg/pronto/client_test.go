package pronto

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

type recorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *recorder) add(req recordedRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *recorder) {
	t.Helper()

	recorded := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		recorded.add(recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:  server.URL + "/pronto/rest/dem.ai_api/",
		Username: "relay_user",
		Password: "s3cret",
	}, WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client, recorded
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{BaseURL: "https://erp.test", Password: "p"})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://erp.test", Username: "u"})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "::not a url", Username: "u", Password: "p"})
	require.Error(t, err)

	client, err := NewClient(Config{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, client.baseURL)
	assert.Equal(t, defaultResultLimit, client.resultLimit)
	assert.Equal(t, defaultRecordLimit, client.recordLimit)
	assert.Equal(t, defaultMaxResultChars, client.maxResultChars)
}

func TestGetAccessTokenTrimsToken(t *testing.T) {
	t.Parallel()

	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, "<LoginResponse><token>  abc123  </token></LoginResponse>")
	})

	token := client.GetAccessToken(context.Background())
	assert.Equal(t, "abc123", token)

	require.Len(t, recorded.all(), 1)
	req := recorded.all()[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/pronto/rest/dem.ai_api/login", req.Path)
	assert.Equal(t, "relay_user", req.Header.Get("X-Pronto-username"))
	assert.Equal(t, "s3cret", req.Header.Get("X-Pronto-Password"))
	assert.Equal(t, "application/json", req.Header.Get("X-Pronto-Content"))
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	assert.Contains(t, req.Body, "user+name=relay_user")
	assert.Contains(t, req.Body, "password=s3cret")
}

func TestGetAccessTokenMissingElement(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<LoginResponse><status>ok</status></LoginResponse>")
	})

	assert.Equal(t, "", client.GetAccessToken(context.Background()))
}

func TestGetAccessTokenMalformedXML(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<LoginResponse><token>abc")
	})

	out := client.GetAccessToken(context.Background())
	assert.True(t, strings.HasPrefix(out, "Error retrieving access token: "), out)
}

func TestGetAccessTokenHTTPError(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	out := client.GetAccessToken(context.Background())
	assert.True(t, strings.HasPrefix(out, "Error retrieving access token: 401 Client Error: Unauthorized for url: "), out)
}

func TestGetItemPricesPayloadAndTruncation(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", 1500)
	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, long)
	})

	out := client.GetItemPrices(context.Background(), "tok-1", "ABC", "", "")
	assert.Equal(t, 1000, utf8.RuneCountInString(out))
	assert.True(t, utf8.ValidString(out))

	require.Len(t, recorded.all(), 1)
	req := recorded.all()[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/pronto/rest/dem.ai_api/api/InvGetItemPrices_V2", req.Path)
	assert.Equal(t, "tok-1", req.Header.Get("X-Pronto-Token"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	body := decodeBody(t, req.Body)
	root := body["InvGetItemPricesRequest"].(map[string]any)
	assert.Equal(t, map[string]any{"Limit": "25", "Offset": "0"}, root["Parameters"])
	assert.Equal(t, map[string]any{
		"ItemCode":        map[string]any{"Like": "ABC"},
		"PriceRegionCode": map[string]any{"Like": ""},
		"TypeCode":        map[string]any{"Like": ""},
	}, root["Filters"])
	fields := root["RequestFields"].(map[string]any)["ItemPrices"].(map[string]any)["ItemPrice"].(map[string]any)
	assert.ElementsMatch(t, []string{"ItemCode", "PriceRegionCode", "WholesalePrice", "TypeCode"}, keys(fields))
}

func TestGetAllItemPricesSharesEndpoint(t *testing.T) {
	t.Parallel()

	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ItemPrices":[]}`)
	})

	out := client.GetAllItemPrices(context.Background(), "tok", "", "", "W%")
	assert.Equal(t, `{"ItemPrices":[]}`, out)
	require.Len(t, recorded.all(), 1)
	assert.Equal(t, "/pronto/rest/dem.ai_api/api/InvGetItemPrices_V2", recorded.all()[0].Path)

	root := decodeBody(t, recorded.all()[0].Body)["InvGetItemPricesRequest"].(map[string]any)
	filters := root["Filters"].(map[string]any)
	assert.Equal(t, map[string]any{"Like": "W%"}, filters["TypeCode"])
}

func TestGetAllItemPricesErrorPrefix(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	out := client.GetAllItemPrices(context.Background(), "tok", "", "", "")
	assert.True(t, strings.HasPrefix(out, "Error retrieving all item prices: 500 Server Error: "), out)
}

func TestGetItemAttributesPayload(t *testing.T) {
	t.Parallel()

	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("a", 4000))
	})

	out := client.GetItemAttributes(context.Background(), "tok", "ITEM-1", "COLOUR", "")
	assert.Len(t, out, 1000)

	require.Len(t, recorded.all(), 1)
	req := recorded.all()[0]
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/pronto/rest/dem.ai_api/api/InvGetItemAttributes_V2", req.Path)

	root := decodeBody(t, req.Body)["InvGetItemAttributes"].(map[string]any)
	assert.Equal(t, "25", root["RecordLimit"])
	assert.Equal(t, map[string]any{
		"ItemCode":    "ITEM-1",
		"AttributeID": "COLOUR",
		"Sequence":    "",
		"Limit":       "10",
		"Offset":      "0",
	}, root["Parameters"])
	assert.Equal(t, map[string]any{"TypeCode": map[string]any{"Like": ""}}, root["Filters"])
}

func TestGetItemWarehousesPayload(t *testing.T) {
	t.Parallel()

	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ItemWarehouses":{"ItemWarehouse":[{"OnHandQty":"4"}]}}`)
	})

	out := client.GetItemWarehouses(context.Background(), "tok", "")
	assert.Contains(t, out, "OnHandQty")

	require.Len(t, recorded.all(), 1)
	root := decodeBody(t, recorded.all()[0].Body)["InvGetItemWarehousesRequest"].(map[string]any)
	assert.Equal(t, "10", root["RecordLimit"])
	assert.Equal(t, map[string]any{"ItemCode": map[string]any{"Like": ""}}, root["Parameters"])
}

func TestGetSalesOrdersNotTruncated(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("s", 3000)
	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, long)
	})

	out := client.GetSalesOrders(context.Background(), "tok", "NSW")
	assert.Equal(t, long, out)

	require.Len(t, recorded.all(), 1)
	req := recorded.all()[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/pronto/rest/dem.ai_api/api/SalesOrderGetSalesOrders_V2", req.Path)

	root := decodeBody(t, req.Body)["SalesOrderGetSalesOrdersRequest"].(map[string]any)
	assert.Equal(t, map[string]any{"Limit": "25"}, root["Parameters"])
	assert.Equal(t, map[string]any{"TerritoryCode": map[string]any{"Like": "NSW"}}, root["Filters"])
	fields := root["RequestFields"].(map[string]any)["SalesOrders"].(map[string]any)["SalesOrder"].(map[string]any)
	assert.ElementsMatch(t, []string{"Count", "SOOrderNo", "StatusCode", "TerritoryCode", "OperatorCode", "SourceCode"}, keys(fields))
}

func TestOperationsNeverFailOnTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	client, err := NewClient(Config{BaseURL: baseURL, Username: "u", Password: "p"})
	require.NoError(t, err)

	ctx := context.Background()
	results := map[string]string{
		"access token":    client.GetAccessToken(ctx),
		"item prices":     client.GetItemPrices(ctx, "t", "", "", ""),
		"item attributes": client.GetItemAttributes(ctx, "t", "", "", ""),
		"all item prices": client.GetAllItemPrices(ctx, "t", "", "", ""),
		"item warehouses": client.GetItemWarehouses(ctx, "t", ""),
		"sales orders":    client.GetSalesOrders(ctx, "t", ""),
	}
	for doing, out := range results {
		assert.True(t, strings.HasPrefix(out, "Error retrieving "+doing+": "), "%s: %s", doing, out)
	}
}

func TestOperationsHonourContextCancellation(t *testing.T) {
	t.Parallel()

	client, recorded := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "never")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := client.GetItemWarehouses(ctx, "tok", "")
	assert.True(t, strings.HasPrefix(out, "Error retrieving item warehouses: "), out)
	assert.Empty(t, recorded.all())
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "abc", truncate("abc", 0))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
