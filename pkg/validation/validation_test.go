package validation

import "testing"

func TestNewReportIsEmptyAndValid(t *testing.T) {
	r := NewReport()
	if !r.Valid || !r.Empty() {
		t.Errorf("new report: valid=%v empty=%v", r.Valid, r.Empty())
	}
	if r.Errors == nil || r.Warnings == nil || r.Info == nil {
		t.Error("slices should be non-nil so they encode as []")
	}
}

func TestImportWarningsKeepReportValid(t *testing.T) {
	r := NewReport()
	r.AddWarning(Result{
		Level:       LevelImport,
		Message:     "row 3: Sponsorship Allocated ($) \"lots\" is not a number, using 0",
		SpecPath:    "row 3: Sponsorship Allocated ($)",
		ActualValue: "lots",
	})
	r.AddInfo(Result{Level: LevelImport, Message: "ignoring unknown columns: Notes", SpecPath: "header"})

	if !r.Valid {
		t.Error("coerced cells must not invalidate an import")
	}
	if r.Warnings[0].Severity != SeverityWarning || r.Info[0].Severity != SeverityInfo {
		t.Errorf("severities = %s, %s", r.Warnings[0].Severity, r.Info[0].Severity)
	}
	if r.Summary != "0 errors, 1 warning, 1 info" {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestSchemaErrorInvalidatesReport(t *testing.T) {
	r := NewReport()
	r.AddError(Result{
		Level:    LevelSchema,
		Message:  "events[1].fixed_costs must be >= 0",
		SpecPath: "events[1].fixed_costs",
		Expected: ">= 0",
	})
	if r.Valid {
		t.Error("schema error should invalidate the report")
	}
	if r.Errors[0].Severity != SeverityError {
		t.Errorf("severity = %s, want error", r.Errors[0].Severity)
	}
	if r.Summary != "1 error, 0 warnings, 0 info" {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestMergeLedgerLoadIntoPlanReport(t *testing.T) {
	plan := NewReport()
	plan.AddInfo(Result{Level: LevelSchema, Message: "annual_budget not set; using 19000.00"})

	load := NewReport()
	load.AddWarning(Result{Level: LevelImport, Message: "event \"Gala\": invalid sponsorship allocation, using 0"})
	load.AddWarning(Result{Level: LevelImport, Message: "imported allocations exceed the annual budget by 250.00"})

	plan.Merge(load)
	plan.Merge(nil)

	if !plan.Valid {
		t.Error("warnings from the ledger file should not invalidate the plan")
	}
	if len(plan.Warnings) != 2 || len(plan.Info) != 1 {
		t.Errorf("merged: %d warnings, %d info", len(plan.Warnings), len(plan.Info))
	}
	if plan.Summary != "0 errors, 2 warnings, 1 info" {
		t.Errorf("summary = %q", plan.Summary)
	}

	bad := NewReport()
	bad.AddError(Result{Level: LevelSchema, Message: "duplicate event name \"Gala\""})
	plan.Merge(bad)
	if plan.Valid {
		t.Error("merging an invalid report should invalidate the result")
	}
}

func TestByLevel(t *testing.T) {
	r := NewReport()
	r.AddWarning(Result{Level: LevelScenario, Message: "allocations[2]: \"abc\" is not a number, skipped"})
	r.AddError(Result{Level: LevelSchema, Message: "platform_fee_rate must be in [0, 1)"})
	r.AddInfo(Result{Level: LevelImport, Message: "ignoring unknown columns: Notes"})
	r.AddWarning(Result{Level: LevelImport, Message: "row 4: unknown merch option \"Stickers\""})

	imports := r.ByLevel(LevelImport)
	if len(imports) != 2 || imports[0].Severity != SeverityWarning || imports[1].Severity != SeverityInfo {
		t.Errorf("import findings = %+v, want warning then info", imports)
	}
	if got := r.ByLevel(LevelCommit); len(got) != 0 {
		t.Errorf("commit findings = %+v, want none", got)
	}
}

func TestMessagesListErrorsFirst(t *testing.T) {
	r := NewReport()
	r.AddWarning(Result{Level: LevelScenario, Message: "skipped abc"})
	r.AddError(Result{Level: LevelCommit, Message: "over budget"})
	r.AddInfo(Result{Level: LevelSchema, Message: "not listed"})
	if r.Empty() {
		t.Error("report with findings should not be empty")
	}
	msgs := r.Messages()
	if len(msgs) != 2 || msgs[0] != "over budget" || msgs[1] != "skipped abc" {
		t.Errorf("messages = %v, want errors before warnings, info omitted", msgs)
	}
}
