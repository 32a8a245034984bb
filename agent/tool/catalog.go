package tool

import (
	"context"
	"fmt"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const (
	ToolGetAccessToken    = "get_access_token"
	ToolGetItemPrices     = "get_item_prices"
	ToolGetItemAttributes = "get_item_attributes"
	ToolGetAllItemPrices  = "get_all_item_prices"
	ToolGetItemWarehouses = "get_item_warehouses"
	ToolGetSalesOrders    = "get_sales_orders"
)

// ERP is the set of remote calls the catalog exposes. *pronto.Client
// implements it.
type ERP interface {
	GetAccessToken(ctx context.Context) string
	GetItemPrices(ctx context.Context, accessToken, itemCodeLike, priceRegionCodeLike, typeCodeLike string) string
	GetItemAttributes(ctx context.Context, accessToken, itemCode, attributeID, typeCodeLike string) string
	GetAllItemPrices(ctx context.Context, accessToken, itemCodeLike, priceRegionCodeLike, typeCodeLike string) string
	GetItemWarehouses(ctx context.Context, accessToken, warehouseCodeLike string) string
	GetSalesOrders(ctx context.Context, accessToken, territoryCode string) string
}

// Registry is the ordered tool list handed to the agent runtime.
type Registry struct {
	tools []*Tool
}

func NewRegistry(tools ...*Tool) (*Registry, error) {
	seen := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || t.Name() == "" {
			return nil, fmt.Errorf("tool registry: unnamed tool")
		}
		if _, dup := seen[t.Name()]; dup {
			return nil, fmt.Errorf("tool registry: duplicate tool %s", t.Name())
		}
		seen[t.Name()] = struct{}{}
	}
	return &Registry{tools: tools}, nil
}

// BuildForERP registers the six ERP tools in their canonical order.
func BuildForERP(erp ERP) (*Registry, error) {
	if erp == nil {
		return nil, fmt.Errorf("tool registry: erp client is required")
	}
	return NewRegistry(Catalog(erp)...)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	return names
}

func (r *Registry) Lookup(name string) (*Tool, bool) {
	for _, t := range r.tools {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

func (r *Registry) BaseTools() []einotool.BaseTool {
	out := make([]einotool.BaseTool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}

func (r *Registry) Infos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.spec.ToolInfo())
	}
	return out
}

func accessTokenParam() Param {
	return Param{
		Name:     "access_token",
		Desc:     "Token returned by get_access_token.",
		Type:     schema.String,
		Required: true,
	}
}

func filterParam(name, desc string) Param {
	return Param{Name: name, Desc: desc, Type: schema.String, Default: ""}
}

func Catalog(erp ERP) []*Tool {
	return []*Tool{
		New(Spec{
			Name: ToolGetAccessToken,
			Desc: "Retrieves an authentication access token for Pronto ERP API access.",
		}, func(ctx context.Context, _ Args) string {
			return erp.GetAccessToken(ctx)
		}),
		New(Spec{
			Name: ToolGetItemPrices,
			Desc: "Retrieves item pricing information with minimal data.",
			Params: []Param{
				accessTokenParam(),
				filterParam("item_code_like", "Item code pattern."),
				filterParam("price_region_code_like", "Price region code pattern."),
				filterParam("type_code_like", "Price type code pattern."),
			},
		}, func(ctx context.Context, a Args) string {
			return erp.GetItemPrices(ctx, a.Get("access_token"), a.Get("item_code_like"), a.Get("price_region_code_like"), a.Get("type_code_like"))
		}),
		New(Spec{
			Name: ToolGetItemAttributes,
			Desc: "Retrieves product attribute information with minimal data.",
			Params: []Param{
				accessTokenParam(),
				filterParam("item_code", "Item code."),
				filterParam("attribute_id", "Attribute identifier."),
				filterParam("type_code_like", "Attribute type code pattern."),
			},
		}, func(ctx context.Context, a Args) string {
			return erp.GetItemAttributes(ctx, a.Get("access_token"), a.Get("item_code"), a.Get("attribute_id"), a.Get("type_code_like"))
		}),
		New(Spec{
			Name: ToolGetAllItemPrices,
			Desc: "Retrieves comprehensive pricing data with minimal filters.",
			Params: []Param{
				accessTokenParam(),
				filterParam("item_code_like", "Item code pattern."),
				filterParam("price_region_code_like", "Price region code pattern."),
				filterParam("type_code_like", "Price type code pattern."),
			},
		}, func(ctx context.Context, a Args) string {
			return erp.GetAllItemPrices(ctx, a.Get("access_token"), a.Get("item_code_like"), a.Get("price_region_code_like"), a.Get("type_code_like"))
		}),
		New(Spec{
			Name: ToolGetItemWarehouses,
			Desc: "Retrieves inventory stock levels with minimal data.",
			Params: []Param{
				accessTokenParam(),
				filterParam("warehouse_code_like", "Code pattern matched against stocked items."),
			},
		}, func(ctx context.Context, a Args) string {
			return erp.GetItemWarehouses(ctx, a.Get("access_token"), a.Get("warehouse_code_like"))
		}),
		New(Spec{
			Name: ToolGetSalesOrders,
			Desc: "Retrieves active sales orders with minimal data.",
			Params: []Param{
				accessTokenParam(),
				filterParam("territory_code", "Sales territory code pattern."),
			},
		}, func(ctx context.Context, a Args) string {
			return erp.GetSalesOrders(ctx, a.Get("access_token"), a.Get("territory_code"))
		}),
	}
}
