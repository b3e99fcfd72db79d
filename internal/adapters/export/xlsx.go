// Package export renders the reservation ledger as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"hotel_inventory/internal/domain"
)

const sheet = "Reservations"

var headers = []string{
	"ReservationID", "Rooms", "CheckIn", "CheckOut", "Nights", "State",
	"CustomerID", "CustomerName", "CustomerEmail", "CreatedAt",
}

// WriteReservations writes one row per reservation. roomNumbers maps room ids
// to display numbers; unknown ids (deleted rooms) are written as "#id".
func WriteReservations(w io.Writer, hotel domain.Hotel, roomNumbers map[int64]string, rs []domain.Reservation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: hotel.Name + " reservations"}); err != nil {
		return fmt.Errorf("xlsx props: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for i, r := range rs {
		row := []any{
			r.ID,
			roomList(r.RoomIDs, roomNumbers),
			r.Interval.Start.Format(domain.DateLayout),
			r.Interval.End.Format(domain.DateLayout),
			r.Interval.Nights(),
			string(r.State),
			r.Customer.ID,
			r.Customer.Name,
			r.Customer.Email,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func roomList(ids []int64, numbers map[int64]string) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if n, ok := numbers[id]; ok {
			out[i] = n
		} else {
			out[i] = fmt.Sprintf("#%d", id)
		}
	}
	return strings.Join(out, ", ")
}
