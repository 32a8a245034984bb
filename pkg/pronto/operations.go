package pronto

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	pathLogin          = "/login"
	pathItemPrices     = "/api/InvGetItemPrices_V2"
	pathItemAttributes = "/api/InvGetItemAttributes_V2"
	pathItemWarehouses = "/api/InvGetItemWarehouses_V2"
	pathSalesOrders    = "/api/SalesOrderGetSalesOrders_V2"
	requestOffset      = "0"
)

// Like is a fuzzy filter. An empty value matches everything on the ERP side.
type Like struct {
	Like string `json:"Like"`
}

type itemPricesRequest struct {
	Request struct {
		Parameters struct {
			Limit  string `json:"Limit"`
			Offset string `json:"Offset"`
		} `json:"Parameters"`
		Filters struct {
			ItemCode        Like `json:"ItemCode"`
			PriceRegionCode Like `json:"PriceRegionCode"`
			TypeCode        Like `json:"TypeCode"`
		} `json:"Filters"`
		RequestFields struct {
			ItemPrices struct {
				ItemPrice struct {
					ItemCode        string `json:"ItemCode"`
					PriceRegionCode string `json:"PriceRegionCode"`
					WholesalePrice  string `json:"WholesalePrice"`
					TypeCode        string `json:"TypeCode"`
				} `json:"ItemPrice"`
			} `json:"ItemPrices"`
		} `json:"RequestFields"`
	} `json:"InvGetItemPricesRequest"`
}

type itemAttributesRequest struct {
	Request struct {
		RecordLimit string `json:"RecordLimit"`
		Parameters  struct {
			ItemCode    string `json:"ItemCode"`
			AttributeID string `json:"AttributeID"`
			Sequence    string `json:"Sequence"`
			Limit       string `json:"Limit"`
			Offset      string `json:"Offset"`
		} `json:"Parameters"`
		Filters struct {
			TypeCode Like `json:"TypeCode"`
		} `json:"Filters"`
		RequestFields struct {
			ItemAttributes struct {
				ItemAttribute struct {
					AttributeID    string `json:"AttributeID"`
					AttributeValue string `json:"AttributeValue"`
					ItemCode       string `json:"ItemCode"`
					Sequence       string `json:"Sequence"`
					TypeCode       string `json:"TypeCode"`
				} `json:"ItemAttribute"`
			} `json:"ItemAttributes"`
		} `json:"RequestFields"`
	} `json:"InvGetItemAttributes"`
}

type itemWarehousesRequest struct {
	Request struct {
		RecordLimit string `json:"RecordLimit"`
		Parameters  struct {
			ItemCode Like `json:"ItemCode"`
		} `json:"Parameters"`
		RequestFields struct {
			ItemWarehouses struct {
				ItemWarehouse struct {
					ItemCode      string `json:"ItemCode"`
					OnHandQty     string `json:"OnHandQty"`
					BackOrdersQty string `json:"BackOrdersQty"`
					WarehouseCode string `json:"WarehouseCode"`
				} `json:"ItemWarehouse"`
			} `json:"ItemWarehouses"`
		} `json:"RequestFields"`
	} `json:"InvGetItemWarehousesRequest"`
}

type salesOrdersRequest struct {
	Request struct {
		Parameters struct {
			Limit string `json:"Limit"`
		} `json:"Parameters"`
		Filters struct {
			TerritoryCode Like `json:"TerritoryCode"`
		} `json:"Filters"`
		RequestFields struct {
			SalesOrders struct {
				SalesOrder struct {
					Count         string `json:"Count"`
					SOOrderNo     string `json:"SOOrderNo"`
					StatusCode    string `json:"StatusCode"`
					TerritoryCode string `json:"TerritoryCode"`
					OperatorCode  string `json:"OperatorCode"`
					SourceCode    string `json:"SourceCode"`
				} `json:"SalesOrder"`
			} `json:"SalesOrders"`
		} `json:"RequestFields"`
	} `json:"SalesOrderGetSalesOrdersRequest"`
}

type loginResponse struct {
	XMLName xml.Name
	Token   *string `xml:"token"`
}

// GetAccessToken logs in with the configured credentials and returns the
// session token. A login response without a token element yields "".
func (c *Client) GetAccessToken(ctx context.Context) string {
	const doing = "retrieving access token"

	form := url.Values{}
	form.Set("user name", c.username)
	form.Set("password", c.password)

	header := http.Header{}
	header.Set("X-Pronto-username", c.username)
	header.Set("X-Pronto-Password", c.password)
	header.Set("X-Pronto-Content", "application/json")

	body, err := c.do(ctx, call{
		op:          "login",
		method:      http.MethodPost,
		path:        pathLogin,
		body:        strings.NewReader(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		header:      header,
	})
	if err != nil {
		return failure(doing, err)
	}

	token, err := parseToken(body)
	if err != nil {
		return failure(doing, err)
	}
	return token
}

func parseToken(body string) (string, error) {
	var resp loginResponse
	if err := xml.Unmarshal([]byte(body), &resp); err != nil {
		return "", fmt.Errorf("parse login response: %w", err)
	}
	if resp.Token == nil {
		return "", nil
	}
	return strings.TrimSpace(*resp.Token), nil
}

// GetItemPrices returns item pricing rows matching the fuzzy filters.
func (c *Client) GetItemPrices(ctx context.Context, accessToken, itemCodeLike, priceRegionCodeLike, typeCodeLike string) string {
	return c.itemPrices(ctx, "item_prices", "retrieving item prices", accessToken, itemCodeLike, priceRegionCodeLike, typeCodeLike)
}

// GetAllItemPrices is the broad variant of GetItemPrices. It hits the same
// endpoint and is exposed separately so the model can ask for a wide sweep.
func (c *Client) GetAllItemPrices(ctx context.Context, accessToken, itemCodeLike, priceRegionCodeLike, typeCodeLike string) string {
	return c.itemPrices(ctx, "all_item_prices", "retrieving all item prices", accessToken, itemCodeLike, priceRegionCodeLike, typeCodeLike)
}

func (c *Client) itemPrices(ctx context.Context, op, doing, accessToken, itemCodeLike, priceRegionCodeLike, typeCodeLike string) string {
	var payload itemPricesRequest
	payload.Request.Parameters.Limit = strconv.Itoa(c.resultLimit)
	payload.Request.Parameters.Offset = requestOffset
	payload.Request.Filters.ItemCode.Like = itemCodeLike
	payload.Request.Filters.PriceRegionCode.Like = priceRegionCodeLike
	payload.Request.Filters.TypeCode.Like = typeCodeLike

	return c.query(ctx, op, doing, http.MethodGet, pathItemPrices, accessToken, payload, true)
}

// GetItemAttributes returns attribute rows for an item.
func (c *Client) GetItemAttributes(ctx context.Context, accessToken, itemCode, attributeID, typeCodeLike string) string {
	var payload itemAttributesRequest
	payload.Request.RecordLimit = strconv.Itoa(c.resultLimit)
	payload.Request.Parameters.ItemCode = itemCode
	payload.Request.Parameters.AttributeID = attributeID
	payload.Request.Parameters.Limit = strconv.Itoa(c.recordLimit)
	payload.Request.Parameters.Offset = requestOffset
	payload.Request.Filters.TypeCode.Like = typeCodeLike

	return c.query(ctx, "item_attributes", "retrieving item attributes", http.MethodGet, pathItemAttributes, accessToken, payload, true)
}

// GetItemWarehouses returns stock levels. The ERP endpoint filters on the
// item code, so warehouseCodeLike is sent as the ItemCode pattern.
func (c *Client) GetItemWarehouses(ctx context.Context, accessToken, warehouseCodeLike string) string {
	var payload itemWarehousesRequest
	payload.Request.RecordLimit = strconv.Itoa(c.recordLimit)
	payload.Request.Parameters.ItemCode.Like = warehouseCodeLike

	return c.query(ctx, "item_warehouses", "retrieving item warehouses", http.MethodGet, pathItemWarehouses, accessToken, payload, true)
}

// GetSalesOrders returns active sales orders for a territory pattern.
func (c *Client) GetSalesOrders(ctx context.Context, accessToken, territoryCode string) string {
	var payload salesOrdersRequest
	payload.Request.Parameters.Limit = strconv.Itoa(c.resultLimit)
	payload.Request.Filters.TerritoryCode.Like = territoryCode

	return c.query(ctx, "sales_orders", "retrieving sales orders", http.MethodPost, pathSalesOrders, accessToken, payload, false)
}

func (c *Client) query(ctx context.Context, op, doing, method, path, accessToken string, payload any, truncated bool) string {
	cl, err := c.jsonCall(op, method, path, accessToken, payload)
	if err != nil {
		return failure(doing, err)
	}

	body, err := c.do(ctx, cl)
	if err != nil {
		return failure(doing, err)
	}
	if truncated {
		return truncate(body, c.maxResultChars)
	}
	return body
}
