package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/TheNoZER0/ticketcalculator/pkg/csvio"
	"github.com/TheNoZER0/ticketcalculator/pkg/ledger"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
)

const testPlan = `
annual_budget: 5000
events:
  - name: Hackathon
    fixed_costs: 5000
    catering_cost: 4000
    total_attendees: 180
    merch_mode: none
    allocations: ["0", "1000", "abc", "6000"]
  - name: Broken
    fixed_costs: 100
    total_attendees: 10
    merch_mode: optional
    expected_merch_sold: 20
  - name: Fee Free For All
    fixed_costs: 100
    total_attendees: 10
    platform_fee_rate: 1
`

func setup(t *testing.T, ledgerPath string) (*Server, *ledger.Ledger, http.Handler) {
	t.Helper()
	plan, err := spec.Parse([]byte(testPlan))
	if err != nil {
		t.Fatalf("parse plan: %v", err)
	}
	l := ledger.New(plan.Budget())
	s := New(plan, l, Options{LedgerPath: ledgerPath})
	return s, l, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	_, _, h := setup(t, "")
	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("request id = %q, want propagated", got)
	}
}

func TestScenariosFromPlanAllocations(t *testing.T) {
	_, _, h := setup(t, "")
	rr := do(t, h, http.MethodPost, "/api/scenarios", `{"event_name":"Hackathon"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Scenarios []struct {
			SponsorAllocation float64  `json:"sponsor_allocation"`
			Status            string   `json:"status"`
			Notes             []string `json:"notes"`
			Committable       bool     `json:"committable"`
		} `json:"scenarios"`
		Report struct {
			Warnings []json.RawMessage `json:"warnings"`
		} `json:"report"`
	}
	decode(t, rr, &resp)
	if len(resp.Scenarios) != 3 {
		t.Fatalf("scenarios = %d, want 3", len(resp.Scenarios))
	}
	if len(resp.Report.Warnings) != 1 {
		t.Errorf("warnings = %d, want 1 for \"abc\"", len(resp.Report.Warnings))
	}
	over := resp.Scenarios[2]
	if over.Status != "over_budget" || over.Committable {
		t.Errorf("6000 against 5000: status=%s committable=%v", over.Status, over.Committable)
	}
	if !resp.Scenarios[1].Committable {
		t.Error("1000 should be committable")
	}
}

func TestScenariosInlineEvent(t *testing.T) {
	_, _, h := setup(t, "")
	body := `{"event":{"name":"Pop-up","fixed_costs":300,"catering_cost":100,"total_attendees":0,"merch_mode":"bundled"},"allocations":[0,"50"]}`
	rr := do(t, h, http.MethodPost, "/api/scenarios", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"zero_attendees"`) {
		t.Errorf("expected zero attendee status: %s", rr.Body.String())
	}
}

func TestScenariosErrors(t *testing.T) {
	_, _, h := setup(t, "")
	cases := []struct {
		body string
		want int
	}{
		{`{`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
		{`{"event_name":"Nope","allocations":["1"]}`, http.StatusNotFound},
		{`{"event_name":"Winter Social"}`, http.StatusNotFound},
		{`{"event":{"name":"X","fixed_costs":-1},"allocations":["1"]}`, http.StatusUnprocessableEntity},
		{`{"event":{"name":"X"}}`, http.StatusBadRequest},
	}
	for _, c := range cases {
		rr := do(t, h, http.MethodPost, "/api/scenarios", c.body)
		if rr.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.body, rr.Code, c.want)
		}
	}
}

func TestCommitFlow(t *testing.T) {
	path := t.TempDir() + "/planned_events.csv"
	_, l, h := setup(t, path)

	rr := do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":1000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var ev ledger.CommittedEvent
	decode(t, rr, &ev)
	if ev.BudgetAfterCommit != 4000 || len(ev.Tickets) != 1 {
		t.Errorf("committed = %+v", ev)
	}
	if l.Remaining() != 4000 {
		t.Errorf("remaining = %v, want 4000", l.Remaining())
	}

	saved, _, err := csvio.LoadFile(path)
	if err != nil || len(saved) != 1 {
		t.Fatalf("ledger file: events=%d err=%v", len(saved), err)
	}

	rr = do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":4500}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("over budget: status = %d, want 409", rr.Code)
	}
	rr = do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":100,"chosen_allocation":4000.01}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("chosen over budget: status = %d, want 409", rr.Code)
	}
	if l.Remaining() != 4000 || len(l.Events()) != 1 {
		t.Error("failed commits changed the ledger")
	}
}

func TestCommitRefusals(t *testing.T) {
	_, l, h := setup(t, "")
	cases := []struct {
		body string
		want int
		code string
	}{
		{`{"event_name":"Broken","allocation":0}`, http.StatusUnprocessableEntity, "input_error"},
		{`{"event_name":"Fee Free For All","allocation":0}`, http.StatusConflict, "no_valid_price"},
		{`{"event_name":"Hackathon"}`, http.StatusBadRequest, "missing_allocation"},
		{`{"event_name":"Hackathon","allocation":-1}`, http.StatusConflict, "budget_exceeded"},
	}
	for _, c := range cases {
		rr := do(t, h, http.MethodPost, "/api/commit", c.body)
		if rr.Code != c.want {
			t.Errorf("%s: status = %d, want %d", c.body, rr.Code, c.want)
			continue
		}
		var e jsonError
		decode(t, rr, &e)
		if e.Error != c.code {
			t.Errorf("%s: error = %q, want %q", c.body, e.Error, c.code)
		}
	}
	if len(l.Events()) != 0 {
		t.Error("refused commits changed the ledger")
	}
}

func TestBudgetReinitialize(t *testing.T) {
	_, l, h := setup(t, "")
	do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":1000}`)

	rr := do(t, h, http.MethodPost, "/api/budget", `{"total_budget":8000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if l.Total() != 8000 || l.Remaining() != 8000 || len(l.Events()) != 0 {
		t.Errorf("ledger not reinitialized: total=%v remaining=%v", l.Total(), l.Remaining())
	}
	if rr := do(t, h, http.MethodPost, "/api/budget", `{"total_budget":-1}`); rr.Code != http.StatusBadRequest {
		t.Errorf("negative budget: status = %d, want 400", rr.Code)
	}
}

func TestExportImport(t *testing.T) {
	_, l, h := setup(t, "")
	do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":1000}`)
	do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":500}`)

	rr := do(t, h, http.MethodGet, "/api/export", "")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "text/csv" {
		t.Fatalf("export: status=%d type=%q", rr.Code, rr.Header().Get("Content-Type"))
	}
	exported := rr.Body.String()

	l.Reinitialize(5000)
	rr = do(t, h, http.MethodPost, "/api/import", exported)
	if rr.Code != http.StatusOK {
		t.Fatalf("import: status=%d body=%s", rr.Code, rr.Body.String())
	}
	if l.Remaining() != 3500 || len(l.Events()) != 2 {
		t.Errorf("after import: remaining=%v events=%d", l.Remaining(), len(l.Events()))
	}
}

func TestImportMissingColumnsLeavesLedger(t *testing.T) {
	_, l, h := setup(t, "")
	do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":1000}`)

	rr := do(t, h, http.MethodPost, "/api/import", "Name,Merch Option\nA,No Merch\n")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var e jsonError
	decode(t, rr, &e)
	if len(e.Missing) != 4 {
		t.Errorf("missing columns = %v, want 4", e.Missing)
	}
	if l.Remaining() != 4000 || len(l.Events()) != 1 {
		t.Error("rejected import changed the ledger")
	}
}

func TestSummaryAndLedger(t *testing.T) {
	_, _, h := setup(t, "")
	do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":1000}`)

	rr := do(t, h, http.MethodGet, "/api/summary", "")
	var summary struct {
		Rows    []json.RawMessage `json:"rows"`
		Summary struct {
			TotalSponsorship float64 `json:"total_sponsorship"`
			RemainingBudget  float64 `json:"remaining_budget"`
		} `json:"summary"`
	}
	decode(t, rr, &summary)
	if len(summary.Rows) != 1 || summary.Summary.TotalSponsorship != 1000 || summary.Summary.RemainingBudget != 4000 {
		t.Errorf("summary = %+v", summary)
	}

	rr = do(t, h, http.MethodGet, "/api/ledger", "")
	var view ledgerView
	decode(t, rr, &view)
	if view.TotalBudget != 5000 || view.RemainingBudget != 4000 || len(view.Events) != 1 {
		t.Errorf("ledger = %+v", view)
	}
}

func TestPlanEndpoint(t *testing.T) {
	_, _, h := setup(t, "")
	rr := do(t, h, http.MethodGet, "/api/plan", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"name":"Hackathon"`)) {
		t.Errorf("plan body = %s", rr.Body.String())
	}

	s := New(nil, ledger.New(100), Options{})
	rr = do(t, s.Handler(), http.MethodGet, "/api/plan", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("no plan: status = %d, want 404", rr.Code)
	}
}

func TestSaveFailureKeepsServing(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/missing/planned_events.csv"
	_, l, h := setup(t, path)
	rr := do(t, h, http.MethodPost, "/api/commit", `{"event_name":"Hackathon","allocation":10}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if l.Remaining() != 4990 {
		t.Errorf("remaining = %v", l.Remaining())
	}
	if _, err := os.Stat(path); err == nil {
		t.Error("ledger file should not exist in a missing directory")
	}
}
