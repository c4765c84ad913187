package importer

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/miadp/fmrgate/internal/model"
	"github.com/miadp/fmrgate/internal/normalize"
	"github.com/miadp/fmrgate/internal/tabular"
)

// Column headers of the MIADP subproject registry export.
const (
	ColumnCode                 = "Subproject ID"
	ColumnTitle                = "Title"
	ColumnAncestralDomain      = "Ancestral Domain"
	ColumnCADTNumber           = "CADT Number"
	ColumnLocation             = "Location"
	ColumnDescription          = "Subproject Description"
	ColumnScopeOfWorks         = "Scope of Works"
	ColumnTargetLength         = "Target Length"
	ColumnUnitOfMeasure        = "Unit of Measure"
	ColumnSourceOfFund         = "Source of Fund"
	ColumnYearFunded           = "Year Funded"
	ColumnTotalBudget          = "Total Budget"
	ColumnApprovedBudget       = "Approved Budget"
	ColumnImplementingAgency   = "Implementing Agency"
	ColumnContractor           = "Contractor"
	ColumnLatitude             = "Latitude"
	ColumnLongitude            = "Longitude"
	ColumnDuration             = "Duration"
	ColumnStartDate            = "Start Date"
	ColumnTargetCompletionDate = "Target Completion Date"
	ColumnActualCompletionDate = "Actual Completion Date"
	ColumnStatus               = "Status"
)

// The registry export has shipped with this misspelling; accept both.
const columnLongitudeMisspelled = "Longitutde"

// rowDecoder coerces the cells of one row. Cells that hold something but
// fail to parse are logged at debug level and stored as absent.
type rowDecoder struct {
	row    tabular.Row
	code   string
	logger *slog.Logger
}

func (d rowDecoder) str(cols ...string) *string {
	return normalize.OptString(d.row.Get(cols...))
}

func (d rowDecoder) integer(col string) *int64 {
	raw := d.row.Get(col)
	v := normalize.OptInt(raw)
	if v == nil {
		d.unparseable(col, raw)
	}
	return v
}

func (d rowDecoder) number(cols ...string) decimal.NullDecimal {
	raw := d.row.Get(cols...)
	v := normalize.OptDecimal(raw)
	if !v.Valid {
		d.unparseable(cols[0], raw)
	}
	return v
}

func (d rowDecoder) date(col string) *time.Time {
	raw := d.row.Get(col)
	v := normalize.OptTime(raw)
	if v == nil {
		d.unparseable(col, raw)
	}
	return v
}

func (d rowDecoder) unparseable(col, raw string) {
	if _, present := normalize.Clean(raw); !present {
		return
	}
	d.logger.Debug("unparseable field stored as absent", "code", d.code, "column", col, "value", raw)
}

// subprojectFromRow builds the full attribute set for one row. The same
// value set is used whether the upsert inserts or updates.
func subprojectFromRow(code string, row tabular.Row, logger *slog.Logger) *model.Subproject {
	d := rowDecoder{row: row, code: code, logger: logger}
	return &model.Subproject{
		Code: code,

		Title:           d.str(ColumnTitle),
		AncestralDomain: d.str(ColumnAncestralDomain),
		CADTNumber:      d.str(ColumnCADTNumber),
		Location:        d.str(ColumnLocation),
		Description:     d.str(ColumnDescription),
		ScopeOfWorks:    d.str(ColumnScopeOfWorks),

		TargetLength:  d.number(ColumnTargetLength),
		UnitOfMeasure: d.str(ColumnUnitOfMeasure),

		SourceOfFund:   d.str(ColumnSourceOfFund),
		YearFunded:     d.integer(ColumnYearFunded),
		TotalBudget:    d.number(ColumnTotalBudget),
		ApprovedBudget: d.number(ColumnApprovedBudget),

		ImplementingAgency: d.str(ColumnImplementingAgency),
		Contractor:         d.str(ColumnContractor),

		Latitude:  d.number(ColumnLatitude),
		Longitude: d.number(ColumnLongitude, columnLongitudeMisspelled),

		Duration:             d.integer(ColumnDuration),
		StartDate:            d.date(ColumnStartDate),
		TargetCompletionDate: d.date(ColumnTargetCompletionDate),
		ActualCompletionDate: d.date(ColumnActualCompletionDate),

		Status: d.str(ColumnStatus),
	}
}
