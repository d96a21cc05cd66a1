package httpapi

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"tokobuning/backend/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sheetRow is one label/amount pair of a report summary sheet.
type sheetRow struct {
	label  string
	amount decimal.Decimal
}

func cashFlowWorkbook(report domain.CashFlowReport) (*excelize.File, error) {
	f, sheet, err := newReportSheet("Arus Kas", report.StartDate, report.EndDate)
	if err != nil {
		return nil, err
	}
	rows := []sheetRow{
		{"Penjualan Tunai", report.Details.CashSales},
		{"Pembayaran Piutang", report.Details.ReceivablePayments},
		{"Total Masuk", report.TotalIn},
		{"Pembayaran Hutang", report.Details.PayablePayments},
		{"Pengeluaran", report.Details.Expenses},
		{"Total Keluar", report.TotalOut},
		{"Arus Kas Bersih", report.NetFlow},
	}
	if err := writeSummaryRows(f, sheet, 4, rows); err != nil {
		return nil, err
	}
	return f, nil
}

func profitLossWorkbook(report domain.ProfitLossReport) (*excelize.File, error) {
	f, sheet, err := newReportSheet("Laba Rugi", report.StartDate, report.EndDate)
	if err != nil {
		return nil, err
	}
	rows := []sheetRow{
		{"Penjualan Kotor", report.GrossSales},
		{"Harga Pokok Penjualan", report.CostOfGoodsSold},
		{"Laba Kotor", report.GrossProfit},
		{"Beban Operasional", report.OperationalExpenses},
		{"Laba Bersih", report.NetProfit},
	}
	if err := writeSummaryRows(f, sheet, 4, rows); err != nil {
		return nil, err
	}

	// Expense detail below the summary.
	start := 4 + len(rows) + 2
	f.SetCellValue(sheet, fmt.Sprintf("A%d", start), "Tanggal")
	f.SetCellValue(sheet, fmt.Sprintf("B%d", start), "Keterangan")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", start), "Jumlah")
	for i, e := range report.Expenses {
		row := start + 1 + i
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.Date.Format("2006-01-02"))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), e.Description)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), e.Amount.InexactFloat64())
	}
	return f, nil
}

func newReportSheet(title string, startDate string, endDate string) (*excelize.File, string, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", title); err != nil {
		_ = f.Close()
		return nil, "", err
	}
	f.SetCellValue(title, "A1", title)
	f.SetCellValue(title, "A2", fmt.Sprintf("Periode %s s/d %s", startDate, endDate))
	if err := f.SetColWidth(title, "A", "B", 28); err != nil {
		_ = f.Close()
		return nil, "", err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, "", err
	}
	if err := f.SetCellStyle(title, "A1", "A1", bold); err != nil {
		_ = f.Close()
		return nil, "", err
	}
	return f, title, nil
}

func writeSummaryRows(f *excelize.File, sheet string, firstRow int, rows []sheetRow) error {
	for i, row := range rows {
		n := firstRow + i
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", n), row.label); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", n), row.amount.InexactFloat64()); err != nil {
			return err
		}
	}
	return nil
}

func writeWorkbook(w http.ResponseWriter, filename string, f *excelize.File) error {
	defer f.Close()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(buf.Bytes())
	return err
}

// receiptView is the data handed to the printable receipt template.
type receiptView struct {
	Store       domain.StoreInfo
	Number      string
	Date        string
	Cashier     string
	Status      domain.TxStatus
	Items       []domain.LineItem
	GrossTotal  decimal.Decimal
	Discount    decimal.Decimal
	NetTotal    decimal.Decimal
	AmountPaid  decimal.Decimal
	ChangeDue   decimal.Decimal
	Method      domain.PaymentMethod
	HasDiscount bool
}

var receiptFuncs = template.FuncMap{"rupiah": formatRupiah}

// receiptTmpl renders an 80mm thermal-style receipt. html/template escapes
// every store and item field.
var receiptTmpl = template.Must(template.New("receipt").Funcs(receiptFuncs).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Struk {{.Number}}</title>
  <style>
    body { font-family: monospace; width: 72mm; margin: 0 auto; font-size: 12px; }
    .center { text-align: center; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 2px 0; vertical-align: top; }
    .right { text-align: right; }
    hr { border: none; border-top: 1px dashed #000; }
  </style>
</head>
<body>
  <div class="center">
    <strong>{{.Store.Name}}</strong><br />
    {{if .Store.Address}}{{.Store.Address}}<br />{{end}}
    {{if .Store.Phone}}Telp: {{.Store.Phone}}{{end}}
  </div>
  <hr />
  <div>No: {{.Number}}<br />Tanggal: {{.Date}}<br />Kasir: {{.Cashier}}</div>
  <hr />
  <table>
    {{range .Items}}<tr><td colspan="2">{{.VariantName}}</td></tr>
    <tr><td>{{.Quantity}} x {{rupiah .UnitPrice}}</td><td class="right">{{rupiah .Subtotal}}</td></tr>
    {{end}}
  </table>
  <hr />
  <table>
    <tr><td>Subtotal</td><td class="right">{{rupiah .GrossTotal}}</td></tr>
    {{if .HasDiscount}}<tr><td>Diskon</td><td class="right">-{{rupiah .Discount}}</td></tr>{{end}}
    <tr><td><strong>Total</strong></td><td class="right"><strong>{{rupiah .NetTotal}}</strong></td></tr>
    <tr><td>Bayar ({{.Method}})</td><td class="right">{{rupiah .AmountPaid}}</td></tr>
    <tr><td>Kembali</td><td class="right">{{rupiah .ChangeDue}}</td></tr>
  </table>
  <hr />
  <div class="center">{{.Store.ReceiptFooter}}</div>
</body>
</html>
`))

func renderReceipt(receipt domain.Receipt, loc *time.Location) (string, error) {
	txn := receipt.Transaction
	at := txn.CreatedAt
	if txn.CompletedAt != nil {
		at = *txn.CompletedAt
	}
	view := receiptView{
		Store:       receipt.Store,
		Number:      txn.Number,
		Date:        at.In(loc).Format("02/01/2006 15:04"),
		Cashier:     txn.Cashier,
		Status:      txn.Status,
		Items:       txn.Items,
		GrossTotal:  txn.GrossTotal,
		Discount:    txn.Discount,
		NetTotal:    txn.NetTotal,
		AmountPaid:  txn.AmountPaid,
		ChangeDue:   txn.ChangeDue,
		Method:      txn.PaymentMethod,
		HasDiscount: txn.Discount.IsPositive(),
	}
	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatRupiah renders whole rupiah with dot thousands separators, e.g. "Rp 12.500".
func formatRupiah(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	digits := amount.Round(0).StringFixed(0)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return "Rp " + sign + b.String()
}
