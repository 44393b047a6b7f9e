// Package ai is the inventory assistant: a Gemini chat session that can
// look up and change stock through a fixed set of tools.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/shopspring/decimal"
	"google.golang.org/api/option"

	"pharmaspot/internal/database"
	"pharmaspot/internal/logging"
	"pharmaspot/internal/models"
)

const (
	DefaultModel  = "gemini-2.0-flash-001"
	maxToolRounds = 5
	inventoryCap  = 100
)

var ErrUnknownTool = errors.New("unknown tool")

type Agent struct {
	store  *database.Store
	apiKey string
	model  string
	now    func() time.Time
}

func NewAgent(store *database.Store, apiKey string) *Agent {
	return &Agent{store: store, apiKey: apiKey, model: DefaultModel, now: time.Now}
}

func systemPrompt(today string) string {
	return fmt.Sprintf(`Today is %s. You are the assistant of a pharmacy point of sale.

RULES:
1. UPDATE: If the user asks to update a product by NAME, do NOT ask for the ID.
   Call 'check_inventory' with the name to find the ID, then 'update_product_price'.
2. READ: For PRICE, COST, STOCK, EXPIRY or other product DETAILS call 'check_inventory'
   and answer from the result.
3. SALES: For sales or revenue questions use 'get_sales_report'.
4. ALERTS: For low stock, expiring or expired medicine use 'stock_alerts'.`, today)
}

var tools = []*genai.Tool{{
	FunctionDeclarations: []*genai.FunctionDeclaration{
		{
			Name:        "check_inventory",
			Description: "Search the inventory. Returns ID, name, generic name, stock, price, cost and expiry of matching products.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString, Description: "Name, generic name or barcode; empty lists everything"},
				},
			},
		},
		{
			Name:        "update_product_price",
			Description: "Update the selling price of a product using its ID",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"product_id": {Type: genai.TypeInteger, Description: "ID of the product"},
					"new_price":  {Type: genai.TypeNumber, Description: "New price"},
				},
				Required: []string{"product_id", "new_price"},
			},
		},
		{
			Name:        "create_product",
			Description: "Add a new product to the inventory",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":           {Type: genai.TypeString, Description: "Name of the product"},
					"price":          {Type: genai.TypeNumber, Description: "Selling price"},
					"category":       {Type: genai.TypeString, Description: "Category name, created if missing"},
					"stock_quantity": {Type: genai.TypeInteger, Description: "Initial stock count"},
				},
				Required: []string{"name", "price", "stock_quantity"},
			},
		},
		{
			Name:        "get_sales_report",
			Description: "Get revenue, order count and best sellers for a date range.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
					"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD)"},
				},
				Required: []string{"start_date", "end_date"},
			},
		},
		{
			Name:        "stock_alerts",
			Description: "List products that are low on stock, expire within 30 days, or have expired.",
		},
	},
}}

// Ask runs one conversation turn, executing tool calls until the model
// answers in text.
func (a *Agent) Ask(ctx context.Context, message string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.Tools = tools
	model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt(a.now().Format(time.DateOnly))))

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", err
	}

	log := logging.FromContext(ctx)
	for round := 0; ; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			return replyText(resp), nil
		}
		if round == maxToolRounds {
			return "", errors.New("assistant: too many tool calls")
		}

		parts := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			out, err := a.CallTool(ctx, call.Name, call.Args)
			if err != nil {
				log.Warn("assistant tool failed", "tool", call.Name, "error", err)
				out = map[string]any{"error": err.Error()}
			}
			parts = append(parts, genai.FunctionResponse{Name: call.Name, Response: plain(out)})
		}
		if resp, err = session.SendMessage(ctx, parts...); err != nil {
			return "", err
		}
	}
}

// CallTool executes one tool against the store.
func (a *Agent) CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "check_inventory":
		return a.checkInventory(ctx, args)
	case "update_product_price":
		return a.updatePrice(ctx, args)
	case "create_product":
		return a.createProduct(ctx, args)
	case "get_sales_report":
		return a.salesReport(ctx, args)
	case "stock_alerts":
		return a.stockAlerts(ctx)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

type productSummary struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Generic        string          `json:"generic,omitempty"`
	Stock          string          `json:"stock"`
	Price          decimal.Decimal `json:"price"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	ExpirationDate string          `json:"expiration_date,omitempty"`
}

func summarize(ps []models.Product) []productSummary {
	out := make([]productSummary, len(ps))
	for i, p := range ps {
		out[i] = productSummary{
			ID:             p.ID,
			Name:           p.Name,
			Generic:        p.Generic,
			Stock:          p.StockDisplay(),
			Price:          p.Price,
			CostPrice:      p.CostPrice,
			ExpirationDate: p.ExpirationDate,
		}
	}
	return out
}

func (a *Agent) checkInventory(ctx context.Context, args map[string]any) (map[string]any, error) {
	q, _ := args["query"].(string)
	products, total, err := a.store.ListProducts(ctx, database.ProductQuery{
		Q:    q,
		Page: database.Page{Page: 1, Limit: inventoryCap},
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"inventory": summarize(products), "total": total}, nil
}

func (a *Agent) updatePrice(ctx context.Context, args map[string]any) (map[string]any, error) {
	id, err := intArg(args, "product_id")
	if err != nil {
		return nil, err
	}
	price, err := decimalArg(args, "new_price")
	if err != nil {
		return nil, err
	}
	if price.IsNegative() {
		return nil, errors.New("new_price must not be negative")
	}

	p, err := a.store.GetProduct(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return map[string]any{"status": "Product ID not found"}, nil
	}
	if err != nil {
		return nil, err
	}
	p.Price = price
	if err := a.store.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return map[string]any{"status": "Success", "product": p.Name, "new_price": price}, nil
}

func (a *Agent) createProduct(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, _ := args["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("name is required")
	}
	price, err := decimalArg(args, "price")
	if err != nil {
		return nil, err
	}
	qty, err := intArg(args, "stock_quantity")
	if err != nil {
		return nil, err
	}

	p := &models.Product{Name: name, Price: price, Quantity: int(qty), TracksStock: true}
	if cat, _ := args["category"].(string); strings.TrimSpace(cat) != "" {
		id, err := a.categoryID(ctx, strings.TrimSpace(cat))
		if err != nil {
			return nil, err
		}
		p.CategoryID = &id
	}
	if err := a.store.SaveProduct(ctx, p); err != nil {
		return nil, err
	}
	return map[string]any{"status": "created", "id": p.ID}, nil
}

// categoryID finds a category by name, ignoring case, or creates it.
func (a *Agent) categoryID(ctx context.Context, name string) (int64, error) {
	cats, err := a.store.ListCategories(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}
	c := &models.Category{Name: name}
	if err := a.store.CreateCategory(ctx, c); err != nil {
		return 0, err
	}
	return c.ID, nil
}

func (a *Agent) salesReport(ctx context.Context, args map[string]any) (map[string]any, error) {
	startStr, _ := args["start_date"].(string)
	endStr, _ := args["end_date"].(string)
	start, err1 := time.Parse(time.DateOnly, startStr)
	end, err2 := time.Parse(time.DateOnly, endStr)
	if err1 != nil || err2 != nil {
		return nil, errors.New("dates must be in YYYY-MM-DD format")
	}
	end = end.Add(24*time.Hour - time.Second)

	report, err := a.store.GetSalesReport(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"revenue":     report.TotalRevenue,
		"sales_count": report.TotalOrders,
		"top_selling": report.TopSelling,
	}, nil
}

func (a *Agent) stockAlerts(ctx context.Context) (map[string]any, error) {
	alerts, err := a.store.ProductAlerts(ctx, a.now())
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"low_stock": summarize(alerts.LowStock),
		"expiring":  summarize(alerts.Expiring),
		"expired":   summarize(alerts.Expired),
	}, nil
}

// Tool arguments arrive as JSON values, so numbers are float64.

func intArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return int64(v), nil
}

func decimalArg(args map[string]any, key string) (decimal.Decimal, error) {
	v, ok := args[key].(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s must be a number", key)
	}
	return decimal.NewFromFloat(v).Round(2), nil
}

// plain converts a tool result to the JSON value types a function response
// can carry.
func plain(m map[string]any) map[string]any {
	b, err := json.Marshal(m)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, part := range firstParts(resp) {
		if fc, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

func replyText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, part := range firstParts(resp) {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "I completed the action."
	}
	return sb.String()
}

func firstParts(resp *genai.GenerateContentResponse) []genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}
