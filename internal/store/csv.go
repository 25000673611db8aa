package store

import (
	"io"

	"github.com/gocarina/gocsv"

	"alpaca-tracker/internal/models"
)

// lotRow flattens a lot for CSV reporting. Dates are formatted explicitly
// so spreadsheets read them without locale guessing.
type lotRow struct {
	ID                string `csv:"id"`
	Symbol            string `csv:"symbol"`
	AcquisitionDate   string `csv:"acquisition_date"`
	OriginalQuantity  string `csv:"original_quantity"`
	OriginalCostBasis string `csv:"original_cost_basis"`
	OpenQuantity      string `csv:"open_quantity"`
	TradeID           string `csv:"trade_id"`
	Closed            bool   `csv:"closed"`
}

// ExportLotsCSV writes the lot table as CSV for reporting.
func ExportLotsCSV(w io.Writer, lots []models.Lot) error {
	rows := make([]*lotRow, 0, len(lots))
	for i := range lots {
		l := &lots[i]
		rows = append(rows, &lotRow{
			ID:                l.ID,
			Symbol:            l.Symbol,
			AcquisitionDate:   l.AcquisitionDate.Format("2006-01-02"),
			OriginalQuantity:  l.OriginalQuantity.String(),
			OriginalCostBasis: l.OriginalCostBasis.String(),
			OpenQuantity:      l.OpenQuantity.String(),
			TradeID:           l.TradeID,
			Closed:            l.Closed,
		})
	}
	return gocsv.Marshal(rows, w)
}
