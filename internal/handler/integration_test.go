//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/viefmoon/bite-api/internal/config"
	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/router"
	"github.com/viefmoon/bite-api/internal/ws"
)

// TestIntegrationKitchenFlow exercises the full preparation lifecycle against
// a real PostgreSQL database: bootstrap users, create an order, pick it up on
// the kitchen display, toggle its items, and complete it.
func TestIntegrationKitchenFlow(t *testing.T) {
	ctx := context.Background()

	pgContainer, connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	cfg := &config.Config{
		Port:           "8081",
		DatabaseURL:    connStr,
		JWTSecret:      "integration-test-secret",
		AllowedOrigins: []string{"*"},
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	// NOTE: hub.Run() goroutine leaks on test exit — Hub has no shutdown
	// mechanism. Acceptable for tests.
	go hub.Run()

	r := router.New(cfg, queries, pool, hub)
	server := httptest.NewServer(r)
	defer server.Close()

	// --- 1. Bootstrap admin user (direct insert, nothing exists yet) ---
	adminID := createAdminUser(t, ctx, pool)

	// --- 2. Login as admin ---
	token := login(t, server, "admin@test.com", "password123")

	// --- 3. Create a preparation screen through the API ---
	screenResp := httpPostJSON(t, server, "/preparation-screens",
		map[string]interface{}{"name": "Grill"}, token)
	screenID := uuid.MustParse(screenResp["id"].(string))

	// --- 4. Create a kitchen user assigned to that screen ---
	httpPostJSON(t, server, "/users", map[string]interface{}{
		"email":                 "grill@test.com",
		"password":              "password123",
		"full_name":             "Grill Cook",
		"role":                  "KITCHEN",
		"preparation_screen_id": screenID.String(),
	}, token)
	cookToken := login(t, server, "grill@test.com", "password123")

	// --- 5. Seed a product routed to the screen (no catalog API) ---
	productID := createProduct(t, ctx, pool, screenID)

	// --- 6. Create a take-away order with two units of the product ---
	orderResp := httpPostJSON(t, server, "/orders", map[string]interface{}{
		"order_type": "TAKE_AWAY",
		"items": []map[string]interface{}{
			{"product_id": productID.String(), "quantity": 2},
		},
	}, token)
	orderID := uuid.MustParse(orderResp["id"].(string))

	if got := orderResp["shift_order_number"].(float64); got != 1 {
		t.Fatalf("shift_order_number: got %v, want 1", got)
	}
	// Base price 95.50 x 2 units.
	if got := orderResp["total"].(string); got != "191" {
		t.Fatalf("order total: got %s, want 191", got)
	}

	// --- 7. Kitchen display shows the order with one grouped line ---
	tickets := httpGetJSONList(t, server, "/kitchen/orders", cookToken)
	if len(tickets) != 1 {
		t.Fatalf("kitchen orders: got %d tickets, want 1", len(tickets))
	}
	ticket := tickets[0]
	if got := ticket["my_screen_status"].(string); got != "PENDING" {
		t.Fatalf("my_screen_status: got %s, want PENDING", got)
	}
	items := ticket["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("ticket lines: got %d, want 1 (grouped)", len(items))
	}
	line := items[0].(map[string]interface{})
	if got := line["quantity"].(float64); got != 2 {
		t.Fatalf("line quantity: got %v, want 2", got)
	}
	itemKey := line["item_ids"].(string)

	// --- 8. Concurrent start-preparation calls converge on one row ---
	startPath := fmt.Sprintf("%s/kitchen/orders/%s/start-preparation", server.URL, orderID)
	statuses := make(chan int, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest("PATCH", startPath, nil)
			if err != nil {
				statuses <- 0
				return
			}
			req.Header.Set("Authorization", "Bearer "+cookToken)
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)
	for code := range statuses {
		if code != http.StatusOK {
			t.Fatalf("concurrent start-preparation: got status %d, want %d", code, http.StatusOK)
		}
	}

	var rowCount int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_preparation_screen_statuses
		 WHERE order_id = $1 AND preparation_screen_id = $2`,
		orderID, screenID,
	).Scan(&rowCount)
	if err != nil {
		t.Fatalf("count screen status rows: %v", err)
	}
	if rowCount != 1 {
		t.Fatalf("screen status rows after concurrent starts: got %d, want 1", rowCount)
	}

	order := httpGetJSON(t, server, fmt.Sprintf("/orders/%s", orderID), token)
	if got := order["order_status"].(string); got != "IN_PREPARATION" {
		t.Fatalf("order status after start: got %s, want IN_PREPARATION", got)
	}

	// --- 9. Mark the grouped line prepared ---
	httpPatchJSON(t, server, fmt.Sprintf("/kitchen/items/%s/prepared", itemKey), nil, cookToken)

	// --- 10. Complete preparation; derived order status reaches READY ---
	completeResp := httpPatchJSON(t, server,
		fmt.Sprintf("/kitchen/orders/%s/complete-preparation", orderID), nil, cookToken)
	if got := completeResp["status"].(string); got != "READY" {
		t.Fatalf("screen status after complete: got %s, want READY", got)
	}

	order = httpGetJSON(t, server, fmt.Sprintf("/orders/%s", orderID), token)
	if got := order["order_status"].(string); got != "READY" {
		t.Fatalf("order status after complete: got %s, want READY", got)
	}

	// --- 11. Cashier hands the order over and closes it ---
	httpPatchJSON(t, server, fmt.Sprintf("/orders/%s/status", orderID),
		map[string]interface{}{"status": "DELIVERED"}, token)
	httpPatchJSON(t, server, fmt.Sprintf("/orders/%s/status", orderID),
		map[string]interface{}{"status": "COMPLETED"}, token)

	order = httpGetJSON(t, server, fmt.Sprintf("/orders/%s", orderID), token)
	if got := order["order_status"].(string); got != "COMPLETED" {
		t.Fatalf("final order status: got %s, want COMPLETED", got)
	}

	t.Logf("integration flow passed: container=%s, admin=%s, screen=%s, product=%s, order=%s",
		pgContainer.GetContainerID(), adminID, screenID, productID, orderID)
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("bite_test"),
		tcpostgres.WithUsername("bite"),
		tcpostgres.WithPassword("bite"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}

	return pgContainer, connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Go test sets cwd to the package directory (internal/handler/).
	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createAdminUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	var id uuid.UUID
	err = pool.QueryRow(ctx,
		`INSERT INTO users (email, hashed_password, full_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		"admin@test.com", string(hashedPassword), "Test Admin", "ADMIN",
	).Scan(&id)
	if err != nil {
		t.Fatalf("create admin user: %v", err)
	}
	return id
}

func createProduct(t *testing.T, ctx context.Context, pool *pgxpool.Pool, screenID uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(ctx,
		`INSERT INTO products (name, base_price, preparation_screen_id)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		"Arrachera Burger", "95.50", screenID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return id
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpJSON(t, server, "POST", path, body, token)
}

func httpPatchJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	return httpJSON(t, server, "PATCH", path, body, token)
}

func httpJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, body: %v", method, path, resp.StatusCode, errResp)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}

func httpGetJSONList(t *testing.T, server *httptest.Server, path string, token string) []map[string]interface{} {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("GET %s: status %d, body: %v", path, resp.StatusCode, errResp)
	}

	var result []map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
