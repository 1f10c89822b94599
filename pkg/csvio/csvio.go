// Package csvio reads and writes the committed-event ledger as CSV, one row
// per event, with ticket lines embedded as a JSON list in one cell.
package csvio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/TheNoZER0/ticketcalculator/pkg/ledger"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
	"github.com/TheNoZER0/ticketcalculator/pkg/validation"
)

// Column headers, in export order.
const (
	ColName              = "Name"
	ColSponsorship       = "Sponsorship Allocated ($)"
	ColMerchOption       = "Merch Option"
	ColTicketDetails     = "Ticket Details"
	ColTotalAttendees    = "Total Expected Attendees (Overall)"
	ColFixedCosts        = "Fixed Costs ($)"
	ColCateringCost      = "Catering Cost ($)"
	ColMerchUnitCost     = "Merch Unit Cost ($)"
	ColExpectedMerchSold = "Expected Merch Sales (Input)"
	ColLYRegularPrice    = "LY Regular Price ($)"
	ColLYMerchPrice      = "LY Merch Price ($)"
	ColBudgetAfter       = "Annual Budget After Commit ($)"
)

// Columns lists every exported column in order.
var Columns = []string{
	ColName, ColSponsorship, ColMerchOption, ColTicketDetails, ColTotalAttendees, ColFixedCosts,
	ColCateringCost, ColMerchUnitCost, ColExpectedMerchSold, ColLYRegularPrice, ColLYMerchPrice, ColBudgetAfter,
}

// RequiredColumns must all be present for an import to proceed.
var RequiredColumns = []string{
	ColName, ColSponsorship, ColMerchOption, ColTicketDetails, ColTotalAttendees, ColFixedCosts,
}

var (
	// ErrMissingColumns is matched by a *MissingColumnsError.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrEmptyInput is returned when the input has no header row.
	ErrEmptyInput = errors.New("empty CSV input")
)

// MissingColumnsError lists the required columns absent from a header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Columns, ", "))
}

// Is makes errors.Is(err, ErrMissingColumns) match.
func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// WriteCSV writes events with a header row.
func WriteCSV(w io.Writer, events []ledger.CommittedEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, ev := range events {
		details, err := EncodeTickets(ev.Tickets)
		if err != nil {
			return fmt.Errorf("encoding tickets for %q: %w", ev.Name, err)
		}
		row := []string{
			ev.Name,
			formatFloat(ev.SponsorshipAllocated),
			string(ev.MerchMode),
			details,
			strconv.Itoa(ev.TotalAttendees),
			formatFloat(ev.FixedCosts),
			formatFloat(ev.CateringCost),
			formatFloat(ev.MerchUnitCost),
			strconv.Itoa(ev.ExpectedMerchSold),
			formatOptional(ev.LastYearRegularPrice),
			formatOptional(ev.LastYearMerchPrice),
			formatFloat(ev.BudgetAfterCommit),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeTickets renders ticket lines as the JSON list stored in the
// Ticket Details cell.
func EncodeTickets(lines []ledger.TicketLine) (string, error) {
	if lines == nil {
		lines = []ledger.TicketLine{}
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadCSV parses a ledger export. Missing required columns reject the whole
// input with a *MissingColumnsError. Bad cells fall back to safe defaults
// and are reported as warnings.
func ReadCSV(r io.Reader) ([]ledger.CommittedEvent, *validation.Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, ErrEmptyInput
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &MissingColumnsError{Columns: missing}
	}

	report := validation.NewReport()
	if extra := unknownColumns(index); len(extra) > 0 {
		report.AddInfo(validation.Result{
			Level:    validation.LevelImport,
			Message:  fmt.Sprintf("ignoring unknown columns: %s", strings.Join(extra, ", ")),
			SpecPath: "header",
		})
	}

	var events []ledger.CommittedEvent
	row := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, nil, fmt.Errorf("reading row %d: %w", row, err)
			}
			report.AddWarning(validation.Result{
				Level:       validation.LevelImport,
				Message:     fmt.Sprintf("row %d: unreadable record skipped (%v)", row, perr.Err),
				SpecPath:    fmt.Sprintf("row %d", row),
				ActualValue: perr.Line,
			})
			continue
		}
		if blankRecord(rec) {
			continue
		}
		rr := rowReader{rec: rec, index: index, row: row, report: report}
		events = append(events, rr.event())
	}
	return events, report, nil
}

func unknownColumns(index map[string]int) []string {
	known := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		known[c] = true
	}
	var extra []string
	for _, h := range maps.Keys(index) {
		if !known[h] && h != "" {
			extra = append(extra, h)
		}
	}
	sort.Strings(extra)
	return extra
}

func blankRecord(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// rowReader converts one CSV record, reporting coercions.
type rowReader struct {
	rec    []string
	index  map[string]int
	row    int
	report *validation.Report
}

func (rr rowReader) event() ledger.CommittedEvent {
	ev := ledger.CommittedEvent{
		Name:                 rr.cell(ColName),
		SponsorshipAllocated: rr.number(ColSponsorship, true),
		MerchMode:            rr.merchMode(),
		TotalAttendees:       rr.count(ColTotalAttendees, true),
		FixedCosts:           rr.number(ColFixedCosts, true),
		CateringCost:         rr.number(ColCateringCost, false),
		MerchUnitCost:        rr.number(ColMerchUnitCost, false),
		ExpectedMerchSold:    rr.count(ColExpectedMerchSold, false),
		LastYearRegularPrice: rr.optional(ColLYRegularPrice),
		LastYearMerchPrice:   rr.optional(ColLYMerchPrice),
		BudgetAfterCommit:    rr.number(ColBudgetAfter, false),
	}
	ev.Tickets = rr.tickets()
	return ev
}

func (rr rowReader) cell(col string) string {
	i, ok := rr.index[col]
	if !ok || i >= len(rr.rec) {
		return ""
	}
	return strings.TrimSpace(rr.rec[i])
}

func (rr rowReader) path(col string) string {
	return fmt.Sprintf("row %d: %s", rr.row, col)
}

func (rr rowReader) warn(col, msg string, actual any) {
	rr.report.AddWarning(validation.Result{
		Level:       validation.LevelImport,
		Message:     fmt.Sprintf("row %d: %s", rr.row, msg),
		SpecPath:    rr.path(col),
		ActualValue: actual,
	})
}

// number parses a numeric cell. Blank required cells and any unparsable
// cell become 0 with a warning.
func (rr rowReader) number(col string, required bool) float64 {
	raw := rr.cell(col)
	if raw == "" {
		if required {
			rr.warn(col, fmt.Sprintf("%s is blank, using 0", col), raw)
		}
		return 0
	}
	f, ok := parseNumber(raw)
	if !ok {
		rr.warn(col, fmt.Sprintf("%s %q is not a number, using 0", col, raw), raw)
		return 0
	}
	return f
}

func (rr rowReader) count(col string, required bool) int {
	return rr.toCount(col, col, rr.number(col, required))
}

// toCount converts f to a head count. Values outside [0, MaxInt32] become 0
// and fractions are truncated, each with a warning.
func (rr rowReader) toCount(col, label string, f float64) int {
	if math.IsNaN(f) || f < 0 || f > math.MaxInt32 {
		rr.warn(col, fmt.Sprintf("%s %v is out of range, using 0", label, f), f)
		return 0
	}
	if f != math.Trunc(f) {
		rr.warn(col, fmt.Sprintf("%s %v is not a whole number, truncating", label, f), f)
	}
	return int(f)
}

// optional parses a cell where blank means unset.
func (rr rowReader) optional(col string) *float64 {
	raw := rr.cell(col)
	if raw == "" {
		return nil
	}
	f, ok := parseNumber(raw)
	if !ok {
		rr.warn(col, fmt.Sprintf("%s %q is not a number, leaving unset", col, raw), raw)
		return nil
	}
	return &f
}

func (rr rowReader) merchMode() spec.MerchMode {
	raw := rr.cell(ColMerchOption)
	m, err := spec.ParseMerchMode(raw)
	if err != nil {
		rr.warn(ColMerchOption, fmt.Sprintf("unknown merch option %q, using %q", raw, spec.NoMerch), raw)
		return spec.NoMerch
	}
	return m
}

// wireTicket accepts loosely typed JSON ticket entries.
type wireTicket struct {
	Type  any `json:"type"`
	Price any `json:"price"`
	Sold  any `json:"sold"`
}

func (rr rowReader) tickets() []ledger.TicketLine {
	raw := rr.cell(ColTicketDetails)
	lines := []ledger.TicketLine{}
	if raw == "" {
		return lines
	}
	var wire []wireTicket
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		rr.warn(ColTicketDetails, fmt.Sprintf("could not parse ticket details (%v), using an empty list", err), raw)
		return lines
	}
	for i, w := range wire {
		price, ok := coerceNumber(w.Price)
		if !ok {
			rr.warn(ColTicketDetails, fmt.Sprintf("ticket %d: price %v is not a number, using 0", i, w.Price), w.Price)
		}
		sold, ok := coerceNumber(w.Sold)
		if !ok {
			rr.warn(ColTicketDetails, fmt.Sprintf("ticket %d: sold %v is not a number, using 0", i, w.Sold), w.Sold)
		}
		typ := ""
		if w.Type != nil {
			typ = fmt.Sprint(w.Type)
		}
		lines = append(lines, ledger.TicketLine{
			Type:  typ,
			Price: price,
			Sold:  rr.toCount(ColTicketDetails, fmt.Sprintf("ticket %d: sold", i), sold),
		})
	}
	return lines
}

// parseNumber accepts plain numbers with an optional leading $ and
// thousands separators. Non-finite values are rejected.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(s), "$"), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func coerceNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case float64:
		return n, true
	case string:
		return parseNumber(n)
	}
	return 0, false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
