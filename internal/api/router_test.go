package api

import (
	"bytes"
	"collection-route-service/internal/adapters/repositories"
	"collection-route-service/internal/api/dto"
	"collection-route-service/internal/domain"
	"collection-route-service/internal/instance"
	"collection-route-service/internal/matrix"
	"collection-route-service/internal/milp"
	"collection-route-service/internal/platform/metrics"
	"collection-route-service/internal/routing"
	"collection-route-service/internal/services"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(x, y float64) *domain.Coordinates { return &domain.Coordinates{Lon: x, Lat: y} }

func line() domain.Entities {
	return domain.Entities{
		Depots:     []domain.Depot{{ID: "D", Location: at(0, 0)}},
		Facilities: []domain.Facility{{ID: "F", Location: at(4, 0)}},
		Customers: []domain.Customer{
			{ID: "A", Location: at(1, 0), Demand: 1},
			{ID: "B", Location: at(2, 0), Demand: 1},
			{ID: "C", Location: at(3, 0), Demand: 1},
		},
		Vehicles: []domain.Vehicle{{ID: "v", Capacity: 10, MaxShift: 200}},
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	planner := services.NewPlanner(
		matrix.NewService(nil, nil, matrix.DefaultOptions()),
		instance.NewBuilder(instance.DefaultOptions()),
		routing.NewOrchestrator(milp.BranchAndBound{}),
		repositories.NewMemoryPlanRepository(),
		services.PlannerConfig{
			Mode:            matrix.ModeEuclidean,
			Solve:           routing.Config{TimeLimit: time.Minute, LogLevel: "quiet"},
			StabilityWeight: 1,
		},
	)
	srv := httptest.NewServer(NewRouter(planner))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	resp, err := http.Post(url, "application/json", r)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	srv := newServer(t)

	resp := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))

	resp = post(t, srv.URL+"/health", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodGet, resp.Header.Get("Allow"))
}

func TestCreateAndGetPlan(t *testing.T) {
	srv := newServer(t)

	resp := post(t, srv.URL+"/plans", dto.PlanRequest{Entities: line()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[dto.PlanResponse](t, resp)

	assert.Equal(t, "/plans/"+created.ID, resp.Header.Get("Location"))
	assert.Equal(t, 1, created.Version)
	assert.Nil(t, created.Changeset)
	assert.Equal(t, domain.StatusOptimal, created.Summary.Status)
	assert.InDelta(t, 8.0, created.Summary.Objective, 1e-6)
	require.Len(t, created.Summary.Vehicles, 1)
	assert.Equal(t, 3, created.Summary.Vehicles[0].Load)
	require.NotNil(t, created.Summary.Gap)

	resp = get(t, srv.URL+"/plans/"+created.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[dto.PlanResponse](t, resp)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.Summary, fetched.Summary)
}

func TestCreatePlanErrors(t *testing.T) {
	srv := newServer(t)

	zeroCap := line()
	zeroCap.Vehicles[0].Capacity = 0
	tooHeavy := line()
	tooHeavy.Customers[1].Demand = 99
	negative := -3.0

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "malformed json", body: `{"entities":`, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"hub":"x"}`, status: http.StatusBadRequest},
		{name: "two objects", body: `{} {}`, status: http.StatusBadRequest},
		{name: "negative time limit", body: dto.PlanRequest{Entities: line(), TimeLimitSeconds: &negative}, status: http.StatusBadRequest},
		{name: "invalid vehicle", body: dto.PlanRequest{Entities: zeroCap}, status: http.StatusUnprocessableEntity},
		{name: "unservable customer", body: dto.PlanRequest{Entities: tooHeavy}, status: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/plans", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, decode[errorBody](t, resp).Error)
		})
	}
}

type errorBody struct {
	Error string   `json:"error"`
	Field string   `json:"field"`
	Hints []string `json:"hints"`
}

func TestGetUnknownPlan(t *testing.T) {
	srv := newServer(t)

	resp := get(t, srv.URL+"/plans/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv.URL+"/plans/does-not-exist/reoptimize", dto.ReoptimizeRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReoptimizePlan(t *testing.T) {
	srv := newServer(t)

	resp := post(t, srv.URL+"/plans", dto.PlanRequest{Entities: line()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	parent := decode[dto.PlanResponse](t, resp)

	body := `{"changeset":{"block_arcs":[{"from":"A","to":"B"}]},"stability_weight":2}`
	resp = post(t, srv.URL+"/plans/"+parent.ID+"/reoptimize", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	child := decode[dto.PlanResponse](t, resp)

	assert.Equal(t, parent.ID, child.ParentID)
	assert.Equal(t, 2, child.Version)
	require.NotNil(t, child.Changeset)
	assert.Equal(t, []domain.ArcRef{{From: "A", To: "B"}}, child.Changeset.BlockArcs)
	assert.InDelta(t, 10.0, child.Summary.Objective, 1e-6)

	resp = post(t, srv.URL+"/plans/"+parent.ID+"/reoptimize",
		`{"changeset":{"remove_customers":["ghost"]}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "remove_customers", decode[errorBody](t, resp).Field)

	resp = post(t, srv.URL+"/plans/"+parent.ID+"/reoptimize",
		`{"changeset":{"disable_vehicles":["v"]}}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	srv := newServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	resp = get(t, srv.URL+"/health")
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.RegisterDefault()
	srv := newServer(t)

	get(t, srv.URL+"/health")
	get(t, srv.URL+"/nowhere")

	resp := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, `http_requests_total{method="GET",route="/health",status="200"}`)
	assert.Contains(t, text, `route="unmatched",status="404"`)
}
