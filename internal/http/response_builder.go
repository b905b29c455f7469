// This file builds JSON responses and holds the wire shapes of the API.
// Money and grams are rendered as decimal strings so no precision is lost.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"caja/internal/core"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message, Status: statusCode})
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

type accountResponse struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Balance decimal.NullDecimal `json:"balance"`
}

type breakdownResponse struct {
	Cash   decimal.Decimal `json:"cash"`
	Wallet decimal.Decimal `json:"wallet"`
}

type clientActivityResponse struct {
	ClientID    string          `json:"client_id"`
	Name        string          `json:"name"`
	OrderCount  int             `json:"order_count"`
	TotalBilled decimal.Decimal `json:"total_billed"`
}

type dashboardResponse struct {
	Year             int                     `json:"year"`
	Month            int                     `json:"month"`
	PeriodStart      time.Time               `json:"period_start"`
	PeriodEnd        time.Time               `json:"period_end"`
	Income           decimal.Decimal         `json:"income"`
	Reinvestment     decimal.Decimal         `json:"reinvestment"`
	Salary           decimal.Decimal         `json:"salary"`
	NetProfit        decimal.Decimal         `json:"net_profit"`
	GramsSold        decimal.Decimal         `json:"grams_sold"`
	TotalBalance     decimal.Decimal         `json:"total_balance"`
	Breakdown        breakdownResponse       `json:"breakdown"`
	Accounts         []accountResponse       `json:"accounts"`
	MostActiveClient *clientActivityResponse `json:"most_active_client"`
}

type accountsResponse struct {
	Accounts     []accountResponse `json:"accounts"`
	TotalBalance decimal.Decimal   `json:"total_balance"`
	Breakdown    breakdownResponse `json:"breakdown"`
}

type movementResponse struct {
	ID         string          `json:"id"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	AccountID  string          `json:"account_id"`
	Reference  string          `json:"reference,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type snapshotResponse struct {
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	Income          decimal.Decimal `json:"income"`
	Reinvestment    decimal.Decimal `json:"reinvestment"`
	Salary          decimal.Decimal `json:"salary"`
	NetProfit       decimal.Decimal `json:"net_profit"`
	GramsSold       decimal.Decimal `json:"grams_sold"`
	TopClientID     string          `json:"top_client_id,omitempty"`
	TopClientName   string          `json:"top_client_name,omitempty"`
	TopClientOrders int             `json:"top_client_orders"`
	ComputedAt      time.Time       `json:"computed_at"`
}

func newAccountResponses(accounts []core.Account) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountResponse{ID: a.ID, Name: a.Name, Balance: a.Balance})
	}
	return out
}

func newBreakdownResponse(b core.AccountBreakdown) breakdownResponse {
	return breakdownResponse{Cash: b.Cash, Wallet: b.Wallet}
}

func newDashboardResponse(d core.Dashboard) dashboardResponse {
	resp := dashboardResponse{
		Year:         d.Month.Year,
		Month:        d.Month.Month,
		PeriodStart:  d.Period.Start,
		PeriodEnd:    d.Period.End,
		Income:       d.Income,
		Reinvestment: d.Reinvestment,
		Salary:       d.Salary,
		NetProfit:    d.NetProfit,
		GramsSold:    d.GramsSold,
		TotalBalance: d.TotalBalance,
		Breakdown:    newBreakdownResponse(d.Breakdown),
		Accounts:     newAccountResponses(d.Accounts),
	}
	if c := d.MostActiveClient; c != nil {
		resp.MostActiveClient = &clientActivityResponse{
			ClientID:    c.ClientID,
			Name:        c.Name,
			OrderCount:  c.OrderCount,
			TotalBilled: c.TotalBilled,
		}
	}
	return resp
}

func newAccountsResponse(accounts []core.Account) accountsResponse {
	return accountsResponse{
		Accounts:     newAccountResponses(accounts),
		TotalBalance: core.TotalBalance(accounts),
		Breakdown:    newBreakdownResponse(core.BreakdownOf(accounts)),
	}
}

func newMovementResponse(tx core.Transaction) movementResponse {
	return movementResponse{
		ID:         tx.ID,
		Category:   tx.Category.String(),
		Amount:     tx.Amount,
		AccountID:  tx.AccountID,
		Reference:  tx.Reference,
		OccurredAt: tx.OccurredAt,
	}
}

func newSnapshotResponses(snaps []core.MonthSnapshot) []snapshotResponse {
	out := make([]snapshotResponse, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, snapshotResponse{
			Year:            s.Month.Year,
			Month:           s.Month.Month,
			Income:          s.Income,
			Reinvestment:    s.Reinvestment,
			Salary:          s.Salary,
			NetProfit:       s.NetProfit,
			GramsSold:       s.GramsSold,
			TopClientID:     s.TopClientID,
			TopClientName:   s.TopClientName,
			TopClientOrders: s.TopClientOrders,
			ComputedAt:      s.ComputedAt,
		})
	}
	return out
}
