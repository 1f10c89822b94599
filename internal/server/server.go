package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/TheNoZER0/ticketcalculator/internal/obs"
	"github.com/TheNoZER0/ticketcalculator/pkg/cost"
	"github.com/TheNoZER0/ticketcalculator/pkg/csvio"
	"github.com/TheNoZER0/ticketcalculator/pkg/ledger"
	"github.com/TheNoZER0/ticketcalculator/pkg/scenario"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
	"github.com/TheNoZER0/ticketcalculator/pkg/validation"
)

const maxImportBytes = 10 << 20

// Options configures a Server.
type Options struct {
	Addr            string
	LedgerPath      string // the ledger is saved here after every change when set
	ShutdownTimeout time.Duration
}

// Server is the HTTP API over one planning session's ledger.
type Server struct {
	plan   *spec.PlanSpec
	ledger *ledger.Ledger
	opts   Options

	saveMu sync.Mutex
}

// New creates a server. plan may be nil when events are always sent inline.
func New(plan *spec.PlanSpec, l *ledger.Ledger, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{plan: plan, ledger: l, opts: opts}
}

// Handler returns the routed API with request id and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("POST /api/budget", s.handleBudget)
	mux.HandleFunc("GET /api/plan", s.handlePlan)
	mux.HandleFunc("POST /api/scenarios", s.handleScenarios)
	mux.HandleFunc("POST /api/commit", s.handleCommit)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	return WithRequestID(WithLogging(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		obs.Logger.Info("http_listen", "addr", s.opts.Addr, "ledger", s.opts.LedgerPath)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	obs.Logger.Info("shutdown_begin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	obs.Logger.Info("server_stopped")
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>ticketcalc</title></head>
<body style="font-family:system-ui;max-width:40em;margin:3em auto">
<h1>ticketcalc</h1>
<p>Break-even ticket pricing and sponsorship ledger.</p>
<ul>
<li><code>GET /api/ledger</code> <code>POST /api/budget</code></li>
<li><code>GET /api/plan</code> <code>POST /api/scenarios</code> <code>POST /api/commit</code></li>
<li><code>GET /api/export</code> <code>POST /api/import</code> <code>GET /api/summary</code></li>
</ul>
</body></html>`)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ledgerView struct {
	TotalBudget     float64                 `json:"total_budget"`
	RemainingBudget float64                 `json:"remaining_budget"`
	Events          []ledger.CommittedEvent `json:"events"`
}

func (s *Server) view() ledgerView {
	return ledgerView{
		TotalBudget:     s.ledger.Total(),
		RemainingBudget: s.ledger.Remaining(),
		Events:          s.ledger.Events(),
	}
}

func (s *Server) handleLedger(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TotalBudget *float64 `json:"total_budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.TotalBudget == nil || *req.TotalBudget < 0 {
		WriteJSONError(w, http.StatusBadRequest, "invalid_budget", "total_budget must be a non-negative amount")
		return
	}
	s.ledger.Reinitialize(*req.TotalBudget)
	obs.Logger.Info("ledger_reinitialize", "total_budget", *req.TotalBudget,
		"request_id", RequestIDFromContext(r.Context()))
	s.save()
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handlePlan(w http.ResponseWriter, _ *http.Request) {
	if s.plan == nil {
		WriteJSONError(w, http.StatusNotFound, "no_plan", "server started without a plan file")
		return
	}
	events := make([]spec.EventConfig, 0, len(s.plan.Events))
	for _, ev := range s.plan.Events {
		events = append(events, ev.Config(s.plan.Defaults))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"annual_budget": s.plan.Budget(),
		"events":        events,
		"report":        validation.ValidateSchema(s.plan),
	})
}

// eventRef names a plan event or carries one inline.
type eventRef struct {
	Event     *spec.EventDef `json:"event"`
	EventName string         `json:"event_name"`
}

// resolve returns the event config and its plan allocations, or an HTTP
// error already written to w.
func (s *Server) resolve(w http.ResponseWriter, ref eventRef) (spec.EventConfig, []string, bool) {
	defaults := spec.Defaults{}
	if s.plan != nil {
		defaults = s.plan.Defaults
	}

	var def *spec.EventDef
	switch {
	case ref.Event != nil:
		def = ref.Event
	case ref.EventName != "":
		if s.plan != nil {
			def = s.plan.EventByName(ref.EventName)
		}
		if def == nil {
			WriteJSONError(w, http.StatusNotFound, "unknown_event", fmt.Sprintf("no event named %q in the plan", ref.EventName))
			return spec.EventConfig{}, nil, false
		}
	default:
		WriteJSONError(w, http.StatusBadRequest, "missing_event", "provide event or event_name")
		return spec.EventConfig{}, nil, false
	}

	cfg := def.Config(defaults)
	if report := validation.ValidateEvent(cfg); !report.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, jsonError{
			Error:   "invalid_event",
			Details: report.Summary,
			Report:  report,
		})
		return spec.EventConfig{}, nil, false
	}
	return cfg, def.Allocations, true
}

type scenarioView struct {
	scenario.Scenario
	Committable bool `json:"committable"`
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	var req struct {
		eventRef
		Allocations []any `json:"allocations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	cfg, planAllocations, ok := s.resolve(w, req.eventRef)
	if !ok {
		return
	}

	raw := allocationStrings(req.Allocations)
	if len(raw) == 0 {
		raw = planAllocations
	}
	if len(raw) == 0 {
		WriteJSONError(w, http.StatusBadRequest, "missing_allocations", "provide allocations to sweep")
		return
	}

	scenarios, report := scenario.SweepInputs(s.ledger, cfg, raw)
	views := make([]scenarioView, 0, len(scenarios))
	for _, sc := range scenarios {
		views = append(views, scenarioView{Scenario: sc, Committable: sc.Committable()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"remaining_budget": s.ledger.Remaining(),
		"scenarios":        views,
		"report":           report,
	})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		eventRef
		Allocation       *float64 `json:"allocation"`
		ChosenAllocation *float64 `json:"chosen_allocation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Allocation == nil {
		WriteJSONError(w, http.StatusBadRequest, "missing_allocation", "allocation is required")
		return
	}
	cfg, _, ok := s.resolve(w, req.eventRef)
	if !ok {
		return
	}

	chosen := *req.Allocation
	if req.ChosenAllocation != nil {
		chosen = *req.ChosenAllocation
	}
	sc := scenario.Evaluate(cfg, *req.Allocation, s.ledger.Remaining())
	ev, err := s.ledger.Commit(sc, chosen)
	if err != nil {
		status, code := commitStatus(err)
		obs.Logger.Warn("ledger_commit_refused", "event", cfg.Name, "allocation", chosen, "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, status, code, err.Error())
		return
	}

	obs.Logger.Info("ledger_commit", "event", ev.Name, "allocation", ev.SponsorshipAllocated,
		"remaining", ev.BudgetAfterCommit, "request_id", RequestIDFromContext(r.Context()))
	s.save()
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="planned_events.csv"`)
	if err := csvio.WriteCSV(w, s.ledger.ExportAll()); err != nil {
		obs.Logger.Error("export_failed", "error", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	events, report, err := csvio.ReadCSV(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var missing *csvio.MissingColumnsError
		if errors.As(err, &missing) {
			writeJSON(w, http.StatusBadRequest, jsonError{
				Error:   "missing_columns",
				Details: err.Error(),
				Missing: missing.Columns,
			})
			return
		}
		WriteJSONError(w, http.StatusBadRequest, "invalid_csv", err.Error())
		return
	}

	report.Merge(s.ledger.ImportAll(events))
	obs.Logger.Info("ledger_import", "events", len(events), "warnings", len(report.Warnings),
		"remaining", s.ledger.Remaining(), "request_id", RequestIDFromContext(r.Context()))
	s.save()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":            len(events),
		"remaining_budget": s.ledger.Remaining(),
		"report":           report,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cost.Summarize(s.ledger.Events(), s.ledger.Total()))
}

// save persists the ledger when a path is configured. Failures are logged;
// the in-memory ledger stays authoritative.
func (s *Server) save() {
	if s.opts.LedgerPath == "" {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := csvio.SaveFile(s.opts.LedgerPath, s.ledger.ExportAll()); err != nil {
		obs.Logger.Error("ledger_save_failed", "path", s.opts.LedgerPath, "error", err)
	}
}

// allocationStrings accepts JSON numbers or strings.
func allocationStrings(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch a := v.(type) {
		case string:
			out = append(out, a)
		case float64:
			out = append(out, strconv.FormatFloat(a, 'f', -1, 64))
		default:
			out = append(out, fmt.Sprint(a))
		}
	}
	return out
}
