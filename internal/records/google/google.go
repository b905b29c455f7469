package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"caja/internal/core"
	"caja/internal/records"
)

// Ensure interface conformance
var (
	_ records.Store          = (*Client)(nil)
	_ records.MovementWriter = (*Client)(nil)
)

// Tabs names the worksheets holding each record kind. Every tab starts with
// a header row; columns are located by header name.
type Tabs struct {
	Movements string
	Orders    string
	Clients   string
	Accounts  string
}

func DefaultTabs() Tabs {
	return Tabs{Movements: "Movimientos", Orders: "Ordenes", Clients: "Clientes", Accounts: "Cuentas"}
}

// Config selects the spreadsheet and the service account used to read it.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
	Tabs               Tabs
	// CacheTTL keeps fetched tabs in memory; zero disables it.
	CacheTTL time.Duration
	// Location interprets dates written without a zone.
	Location *time.Location
}

type tabCache struct {
	values    [][]any
	expiresAt time.Time
}

// Client is a record store over a Google spreadsheet. Reads may be served
// from a per-tab cache; writes always read the sheet afresh.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabs          Tabs
	loc           *time.Location
	now           func() time.Time

	// writeMu serializes writes so two movements never claim the same row.
	writeMu sync.Mutex

	mu                 sync.Mutex
	cache              map[string]tabCache
	cacheValidDuration time.Duration
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg.ServiceAccountJSON, cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg), nil
}

// NewWithService builds a client over an existing Sheets service.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	return newClient(svc, cfg)
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	tabs := cfg.Tabs
	def := DefaultTabs()
	if tabs.Movements == "" {
		tabs.Movements = def.Movements
	}
	if tabs.Orders == "" {
		tabs.Orders = def.Orders
	}
	if tabs.Clients == "" {
		tabs.Clients = def.Clients
	}
	if tabs.Accounts == "" {
		tabs.Accounts = def.Accounts
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      strings.TrimSpace(cfg.SpreadsheetID),
		tabs:               tabs,
		loc:                loc,
		now:                time.Now,
		cache:              make(map[string]tabCache),
		cacheValidDuration: cfg.CacheTTL,
	}
}

// newSheetsService initializes a Sheets service from service account
// credentials, inline JSON taking precedence over a file.
func newSheetsService(ctx context.Context, inlineJSON, file string) (*gsheet.Service, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	if inlineJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(inlineJSON)
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		var err error
		credentialsJSON, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	creds, err := oauthgoogle.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	service, err := gsheet.NewService(ctx, goption.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func (c *Client) ListTransactions(ctx context.Context, f records.TransactionFilter) ([]core.Transaction, error) {
	values, err := c.readTab(ctx, c.tabs.Movements)
	if err != nil {
		return nil, err
	}
	all, err := parseMovements(values, c.loc)
	if err != nil {
		return nil, core.Unavailable("parse "+c.tabs.Movements, err)
	}
	var out []core.Transaction
	for _, tx := range all {
		if tx.Category == f.Category && f.Period.Contains(tx.OccurredAt) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (c *Client) ListOrders(ctx context.Context, p core.Period) ([]core.Order, error) {
	values, err := c.readTab(ctx, c.tabs.Orders)
	if err != nil {
		return nil, err
	}
	all, err := parseOrders(values, c.loc)
	if err != nil {
		return nil, core.Unavailable("parse "+c.tabs.Orders, err)
	}
	var out []core.Order
	for _, o := range all {
		if p.Contains(o.Date) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (c *Client) GetClient(ctx context.Context, id string) (core.Client, error) {
	values, err := c.readTab(ctx, c.tabs.Clients)
	if err != nil {
		return core.Client{}, err
	}
	clients, err := parseClients(values)
	if err != nil {
		return core.Client{}, core.Unavailable("parse "+c.tabs.Clients, err)
	}
	for _, cl := range clients {
		if cl.ID == id {
			return cl, nil
		}
	}
	return core.Client{}, fmt.Errorf("client %s: %w", id, core.ErrNotFound)
}

func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	values, err := c.readTab(ctx, c.tabs.Accounts)
	if err != nil {
		return nil, err
	}
	accounts, err := parseAccounts(values)
	if err != nil {
		return nil, core.Unavailable("parse "+c.tabs.Accounts, err)
	}
	return accounts, nil
}

// InvalidateCache drops every cached tab.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]tabCache)
}

func (c *Client) cached(tab string) ([][]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[tab]
	if !ok || !time.Now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.values, true
}

func (c *Client) store(tab string, values [][]any) {
	if c.cacheValidDuration <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[tab] = tabCache{values: values, expiresAt: time.Now().Add(c.cacheValidDuration)}
}

func (c *Client) readTab(ctx context.Context, tab string) ([][]any, error) {
	if values, ok := c.cached(tab); ok {
		return values, nil
	}
	values, err := c.fetchTab(ctx, tab)
	if err != nil {
		return nil, err
	}
	c.store(tab, values)
	return values, nil
}

// fetchTab reads tab from the API, bypassing the cache.
func (c *Client) fetchTab(ctx context.Context, tab string) ([][]any, error) {
	if c.svc == nil {
		return nil, core.Unavailable("read "+tab, errors.New("sheets service not initialized"))
	}

	rng := fmt.Sprintf("%s!A:Z", tab)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read sheet", "range", rng, "error", err)
		return nil, core.Unavailable("read "+rng, err)
	}

	slog.DebugContext(ctx, "Sheet read", "range", rng, "rows", len(resp.Values))
	return resp.Values, nil
}
