package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"golang.org/x/exp/maps"

	"github.com/TheNoZER0/ticketcalculator/internal/config"
	"github.com/TheNoZER0/ticketcalculator/internal/obs"
	"github.com/TheNoZER0/ticketcalculator/internal/server"
	"github.com/TheNoZER0/ticketcalculator/pkg/cost"
	"github.com/TheNoZER0/ticketcalculator/pkg/csvio"
	"github.com/TheNoZER0/ticketcalculator/pkg/ledger"
	"github.com/TheNoZER0/ticketcalculator/pkg/pricing"
	"github.com/TheNoZER0/ticketcalculator/pkg/scenario"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
	"github.com/TheNoZER0/ticketcalculator/pkg/validation"
)

// session is a loaded plan plus the ledger restored from disk.
type session struct {
	cfg        config.Config
	plan       *spec.PlanSpec // nil when no plan file was found and none was required
	ledger     *ledger.Ledger
	ledgerPath string
}

// openSession loads the plan and the persisted ledger. An explicit project
// path must contain a plan; otherwise the configured plan path is optional
// unless needPlan is set.
func openSession(g *globals, projectPath string, needPlan bool) (*session, *validation.Report, error) {
	cfg := config.Load()
	obs.InitLoggerTo(os.Stderr, g.logLevel, "text")

	s := &session{cfg: cfg, ledgerPath: cfg.LedgerPath}
	if g.ledgerPath != "" {
		s.ledgerPath = g.ledgerPath
	}

	path := projectPath
	if path == "" {
		path = cfg.PlanPath
	}
	plan, err := spec.LoadProject(path)
	switch {
	case err == nil:
		s.plan = plan
	case projectPath == "" && !needPlan && errors.Is(err, fs.ErrNotExist):
		obs.Logger.Debug("no_plan", "path", path)
	default:
		return nil, nil, fmt.Errorf("loading plan: %w", err)
	}

	total := spec.DefaultAnnualBudget
	if s.plan != nil {
		total = s.plan.Budget()
	}
	total = cfg.Budget(total)
	if g.budget >= 0 {
		total = g.budget
	}

	s.ledger = ledger.New(total)
	events, report, err := csvio.LoadFile(s.ledgerPath)
	if err != nil {
		return nil, nil, err
	}
	report.Merge(s.ledger.ImportAll(events))
	obs.Logger.Debug("ledger_loaded", "path", s.ledgerPath, "events", len(events),
		"total", total, "remaining", s.ledger.Remaining())
	return s, report, nil
}

func (s *session) save() error {
	if err := csvio.SaveFile(s.ledgerPath, s.ledger.ExportAll()); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	return nil
}

// event resolves name against the plan, prompting when name is empty and
// the plan has more than one event.
func (s *session) event(name string) (spec.EventConfig, []string, error) {
	if len(s.plan.Events) == 0 {
		return spec.EventConfig{}, nil, fmt.Errorf("plan has no events")
	}

	var def *spec.EventDef
	switch {
	case name != "":
		def = s.plan.EventByName(name)
		if def == nil {
			return spec.EventConfig{}, nil, fmt.Errorf("no event named %q in the plan", name)
		}
	case len(s.plan.Events) == 1:
		def = &s.plan.Events[0]
	default:
		indexByName := make(map[string]int, len(s.plan.Events))
		for i, ev := range s.plan.Events {
			indexByName[ev.Name] = i
		}
		i, err := promptChoice("Select Event", indexByName)
		if err != nil {
			return spec.EventConfig{}, nil, err
		}
		def = &s.plan.Events[i]
	}

	cfg := def.Config(s.plan.Defaults)
	if report := validation.ValidateEvent(cfg); !report.Valid {
		printValidationReport(os.Stdout, report)
		return spec.EventConfig{}, nil, fmt.Errorf("event %q has validation errors", cfg.Name)
	}
	return cfg, def.Allocations, nil
}

func runValidate(g *globals, projectPath string) error {
	s, ledgerReport, err := openSession(g, projectPath, true)
	if err != nil {
		return err
	}
	report := validation.ValidateSchema(s.plan)
	report.Merge(ledgerReport)

	printValidationReport(os.Stdout, report)

	if !report.Valid {
		return fmt.Errorf("plan has validation errors")
	}
	return nil
}

func runSweep(g *globals, projectPath, eventName, allocations string) error {
	s, _, err := openSession(g, projectPath, true)
	if err != nil {
		return err
	}
	cfg, planAllocations, err := s.event(eventName)
	if err != nil {
		return err
	}

	raw := splitAllocations(allocations)
	if len(raw) == 0 {
		raw = planAllocations
	}
	if len(raw) == 0 {
		return fmt.Errorf("event %q has no allocations; pass --allocations", cfg.Name)
	}

	scenarios, report := scenario.SweepInputs(s.ledger, cfg, raw)
	printScenarios(os.Stdout, cfg, s.ledger.Remaining(), scenarios)
	if !report.Empty() {
		fmt.Println()
		printValidationReport(os.Stdout, report)
	}
	return nil
}

func runCommit(g *globals, projectPath, eventName, allocations string, chosen *float64) error {
	s, _, err := openSession(g, projectPath, true)
	if err != nil {
		return err
	}
	cfg, planAllocations, err := s.event(eventName)
	if err != nil {
		return err
	}

	var sc scenario.Scenario
	var amount float64
	if chosen != nil {
		amount = *chosen
		sc = scenario.Evaluate(cfg, amount, s.ledger.Remaining())
	} else {
		raw := splitAllocations(allocations)
		if len(raw) == 0 {
			raw = planAllocations
		}
		if len(raw) == 0 {
			return fmt.Errorf("event %q has no allocations; pass --allocations or --allocation", cfg.Name)
		}
		scenarios, report := scenario.SweepInputs(s.ledger, cfg, raw)
		printScenarios(os.Stdout, cfg, s.ledger.Remaining(), scenarios)
		if !report.Empty() {
			printValidationReport(os.Stdout, report)
		}
		fmt.Println()

		sc, err = pickScenario(scenarios)
		if err != nil {
			return err
		}
		amount, err = promptAmount("Sponsorship to commit", sc.SponsorAllocation)
		if err != nil {
			return err
		}
	}

	ev, err := s.ledger.Commit(sc, amount)
	if err != nil {
		return fmt.Errorf("committing %q: %w", cfg.Name, err)
	}
	if err := s.save(); err != nil {
		return err
	}
	obs.Logger.Info("ledger_commit", "event", ev.Name, "allocation", ev.SponsorshipAllocated,
		"remaining", ev.BudgetAfterCommit)
	printCommitted(os.Stdout, ev)
	return nil
}

func runLedger(g *globals, projectPath string) error {
	s, report, err := openSession(g, projectPath, false)
	if err != nil {
		return err
	}
	printLedger(os.Stdout, s.ledger.Total(), s.ledger.Remaining(), s.ledger.Events())
	if !report.Empty() {
		fmt.Println()
		printValidationReport(os.Stdout, report)
	}
	return nil
}

func runSummary(g *globals, projectPath string) error {
	s, _, err := openSession(g, projectPath, false)
	if err != nil {
		return err
	}
	printCostReport(os.Stdout, cost.Summarize(s.ledger.Events(), s.ledger.Total()))
	return nil
}

func runImport(g *globals, csvPath, projectPath string) error {
	s, _, err := openSession(g, projectPath, false)
	if err != nil {
		return err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("opening import: %w", err)
	}
	defer f.Close()

	events, report, err := csvio.ReadCSV(f)
	if err != nil {
		var missing *csvio.MissingColumnsError
		if errors.As(err, &missing) {
			return fmt.Errorf("%s is missing columns: %s", csvPath, strings.Join(missing.Columns, ", "))
		}
		return fmt.Errorf("reading %s: %w", csvPath, err)
	}

	report.Merge(s.ledger.ImportAll(events))
	if err := s.save(); err != nil {
		return err
	}
	if !report.Empty() {
		printValidationReport(os.Stdout, report)
		fmt.Println()
	}
	fmt.Printf("Imported %d events; remaining budget %s\n", len(events), formatMoney(s.ledger.Remaining()))
	return nil
}

func runExport(g *globals, projectPath string) error {
	s, _, err := openSession(g, projectPath, false)
	if err != nil {
		return err
	}
	return csvio.WriteCSV(os.Stdout, s.ledger.ExportAll())
}

func runReset(g *globals, projectPath string) error {
	s, _, err := openSession(g, projectPath, false)
	if err != nil {
		return err
	}
	s.ledger.Reinitialize(s.ledger.Total())
	if err := s.save(); err != nil {
		return err
	}
	fmt.Printf("Ledger cleared; remaining budget %s\n", formatMoney(s.ledger.Remaining()))
	return nil
}

type quoteFlags struct {
	headcount   int
	fixed       float64
	sponsorship float64
	catering    float64
	merch       float64
	refund      float64
	fee         float64
}

func runQuote(in quoteFlags) error {
	q, err := pricing.Quote(pricing.QuoteInput{
		Headcount:       in.headcount,
		FixedCosts:      in.fixed,
		Sponsorship:     in.sponsorship,
		CateringCost:    in.catering,
		MerchCost:       in.merch,
		RefundRate:      in.refund,
		PlatformFeeRate: in.fee,
	})
	if err != nil {
		return err
	}
	printQuote(os.Stdout, q)
	return nil
}

func runServe(g *globals, projectPath, addr string) error {
	s, report, err := openSession(g, projectPath, false)
	if err != nil {
		return err
	}
	obs.InitLogger(s.cfg.LogLevel, s.cfg.LogFormat)
	for _, res := range report.ByLevel(validation.LevelImport) {
		obs.Logger.Warn("ledger_load_finding", "severity", res.Severity, "message", res.Message)
	}
	if addr == "" {
		addr = s.cfg.HTTPAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(s.plan, s.ledger, server.Options{
		Addr:            addr,
		LedgerPath:      s.ledgerPath,
		ShutdownTimeout: s.cfg.ShutdownTimeout,
	})
	return srv.Start(ctx)
}

// pickScenario prompts for one committable scenario.
func pickScenario(scenarios []scenario.Scenario) (scenario.Scenario, error) {
	indexByLabel := make(map[string]int)
	for i, sc := range scenarios {
		if sc.Committable() {
			indexByLabel[scenarioLabel(sc)] = i
		}
	}
	if len(indexByLabel) == 0 {
		return scenario.Scenario{}, fmt.Errorf("no scenario can be committed: %w", ledger.ErrNoValidPrice)
	}
	i, err := promptChoice("Select Scenario", indexByLabel)
	if err != nil {
		return scenario.Scenario{}, err
	}
	return scenarios[i], nil
}

// promptChoice shows labels in index order and returns the picked index.
func promptChoice(label string, indexByLabel map[string]int) (int, error) {
	items := maps.Keys(indexByLabel)
	sort.Slice(items, func(i, j int) bool {
		return indexByLabel[items[i]] < indexByLabel[items[j]]
	})

	sel := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
	}
	_, picked, err := sel.Run()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return indexByLabel[picked], nil
}

func promptAmount(label string, def float64) (float64, error) {
	prompt := promptui.Prompt{
		Label:   label,
		Default: strconv.FormatFloat(def, 'f', -1, 64),
		Validate: func(input string) error {
			_, err := parseAmount(input)
			return err
		},
	}
	input, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return parseAmount(input)
}

func parseAmount(s string) (float64, error) {
	vals, _ := scenario.ParseAllocations([]string{s})
	if len(vals) != 1 {
		return 0, fmt.Errorf("%q is not a non-negative amount", s)
	}
	return vals[0], nil
}

// splitAllocations splits a comma-separated flag value. Entries are parsed
// later so bad ones surface as warnings.
func splitAllocations(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
