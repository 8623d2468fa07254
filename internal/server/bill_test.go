package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/billorder/internal/bill/repository"
	billservice "github.com/smallbiznis/billorder/internal/bill/service"
	"github.com/smallbiznis/billorder/internal/clock"
	"github.com/smallbiznis/billorder/internal/report"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS bill_orders (
	id BIGINT PRIMARY KEY,
	bill_number TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'DRAFT',
	title TEXT,
	remark TEXT,
	total_amount TEXT NOT NULL DEFAULT '0.00',
	pay_time TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS bill_items (
	id BIGINT PRIMARY KEY,
	bill_id BIGINT NOT NULL,
	product_id TEXT NOT NULL,
	product_name TEXT NOT NULL,
	price TEXT NOT NULL DEFAULT '0.00',
	quantity INTEGER NOT NULL DEFAULT 1,
	subtotal TEXT NOT NULL DEFAULT '0.00',
	status TEXT NOT NULL DEFAULT 'PENDING',
	remark TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_bill_item_product ON bill_items(bill_id, product_id);
`

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(testSchema).Error)

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC))
	svc := billservice.NewService(billservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.New(),
	})

	engine := NewEngine()
	srv := NewServer(ServerParams{
		Gin:     engine,
		BillSvc: svc,
		Reports: report.NewGenerator(),
		Clock:   clk,
	})
	registerRoutes(srv)
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func createBillViaAPI(t *testing.T, engine *gin.Engine) map[string]any {
	t.Helper()
	w := doRequest(t, engine, http.MethodPost, "/v1/bills", `{"title":"api order"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var bill map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bill))
	return bill
}

func billID(t *testing.T, bill map[string]any) string {
	t.Helper()
	id, ok := bill["id"].(string)
	require.True(t, ok, "bill id should serialize as string")
	return id
}

func TestCreateAndGetBill(t *testing.T) {
	engine := newTestServer(t)

	bill := createBillViaAPI(t, engine)
	assert.Equal(t, "DRAFT", bill["status"])
	assert.Equal(t, "0.00", bill["total_amount"])

	w := doRequest(t, engine, http.MethodGet, "/v1/bills/"+billID(t, bill), "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, bill["bill_number"], got["bill_number"])

	number, ok := bill["bill_number"].(string)
	require.True(t, ok)
	w = doRequest(t, engine, http.MethodGet, "/v1/bills/number/"+number, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAddItemAndLifecycleViaAPI(t *testing.T) {
	engine := newTestServer(t)
	bill := createBillViaAPI(t, engine)
	id := billID(t, bill)

	w := doRequest(t, engine, http.MethodPost, "/v1/bills/"+id+"/items",
		`{"product_id":"P1","product_name":"Widget","price":"10.50","quantity":2}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var item map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, "21.00", item["subtotal"])

	w = doRequest(t, engine, http.MethodPost, "/v1/bills/"+id+"/submit", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, engine, http.MethodPost, "/v1/bills/"+id+"/pay", "")
	require.Equal(t, http.StatusOK, w.Code)

	var paid map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &paid))
	assert.Equal(t, "PAID", paid["status"])
	assert.NotNil(t, paid["pay_time"])
}

func TestErrorMapping(t *testing.T) {
	engine := newTestServer(t)
	bill := createBillViaAPI(t, engine)
	id := billID(t, bill)

	// invalid price -> 400
	w := doRequest(t, engine, http.MethodPost, "/v1/bills/"+id+"/items",
		`{"product_id":"P1","product_name":"Widget","price":"1.234","quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// empty bill submit -> 409
	w = doRequest(t, engine, http.MethodPost, "/v1/bills/"+id+"/submit", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// pay from draft -> 409
	w = doRequest(t, engine, http.MethodPost, "/v1/bills/"+id+"/pay", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	// unknown bill -> 404
	w = doRequest(t, engine, http.MethodGet, "/v1/bills/987654", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp["error"]["type"])
}

func TestCancelWithReasonViaAPI(t *testing.T) {
	engine := newTestServer(t)
	bill := createBillViaAPI(t, engine)
	id := billID(t, bill)

	w := doRequest(t, engine, http.MethodPost, "/v1/bills/"+id+"/cancel", `{"reason":"duplicate order"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var cancelled map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cancelled))
	assert.Equal(t, "CANCELLED", cancelled["status"])
	assert.Contains(t, cancelled["remark"], "取消原因: duplicate order")
}

func TestListBillsFilterValidation(t *testing.T) {
	engine := newTestServer(t)
	createBillViaAPI(t, engine)

	w := doRequest(t, engine, http.MethodGet, "/v1/bills?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/v1/bills?status=draft", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["bills"], 1)
}

func TestStatisticsEndpoints(t *testing.T) {
	engine := newTestServer(t)
	bill := createBillViaAPI(t, engine)
	id := billID(t, bill)

	w := doRequest(t, engine, http.MethodPost, "/v1/bills/"+id+"/items",
		`{"product_id":"P1","product_name":"Widget","price":"5.00","quantity":3}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doRequest(t, engine, http.MethodGet, "/v1/bills/statistics", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats map[string]map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats, 5)
	assert.EqualValues(t, 1, stats["DRAFT"]["count"])
	assert.Equal(t, "15.00", stats["DRAFT"]["total_amount"])

	w = doRequest(t, engine, http.MethodGet, "/v1/bills/statistics.pdf", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", w.Body.String()[:4])
}
