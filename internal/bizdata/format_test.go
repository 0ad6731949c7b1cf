package bizdata

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullContext() *Context {
	return &Context{
		Balances: &Balances{Account1: 150000, Account2: 42000},
		Receipts: []Receipt{
			{OperationType: "Sale", Amount: 12000, Date: "2025-03-01", Description: "Retail"},
			{OperationType: "Purchase", Amount: -4000, Date: "2025-03-02", Description: "Supplies"},
		},
		Inventory: []InventoryItem{
			{Name: "Chairs", Quantity: 10, Price: 2500, Folder: "Furniture"},
			{Name: "Paint", Quantity: 4},
		},
		Employees: []Employee{
			{Name: "Ivanov", Position: "Manager", Salary: 60000},
		},
		CalendarEvents: []CalendarEvent{
			{ID: "e2", Title: "Client meeting", Date: "2025-03-11T14:00"},
			{ID: "e1", Title: "Standup", Date: "2025-03-10 09:00"},
		},
		TaxDebts:     []Debt{{Code: "vat", Amount: 8000}, {Code: "profit", Amount: 0}},
		UtilityDebts: []Debt{{Code: "electricity", Amount: 1500}},
		Documents: []Document{
			{ID: "d1", Name: "invoice.pdf", Type: "application/pdf", Size: 1024},
		},
	}
}

func TestFormatFullContext(t *testing.T) {
	out := Format(fullContext(), 0)

	assert.Contains(t, out, "Account balances")
	assert.Contains(t, out, "150,000 ₽")
	assert.Contains(t, out, "RECEIPTS: 2 operations")
	assert.Contains(t, out, "INVENTORY: 2 positions")
	assert.Contains(t, out, "EMPLOYEES: 1 people")
	assert.Contains(t, out, "CALENDAR: 2 events")
	assert.Contains(t, out, "TAXES:")
	assert.Contains(t, out, "VAT: 8,000 ₽")
	assert.Contains(t, out, "UTILITIES:")
	assert.Contains(t, out, "DOCUMENTS: 1 files")
	assert.LessOrEqual(t, utf8.RuneCountInString(out), DefaultMaxChars)
}

func TestFormatCalendarSortedAndNormalized(t *testing.T) {
	out := Format(fullContext(), 0)

	// Events sorted by date, dates normalized to the T-separated form.
	standup := strings.Index(out, "ID: e1")
	meeting := strings.Index(out, "ID: e2")
	require.Greater(t, standup, -1)
	require.Greater(t, meeting, -1)
	assert.Less(t, standup, meeting)
	assert.Contains(t, out, "2025-03-10T09:00")
}

func TestFormatEmptyContext(t *testing.T) {
	assert.Equal(t, "No business data available", Format(nil, 0))
	assert.Equal(t, "No business data available", Format(&Context{}, 0))

	// Zero-amount debts alone produce no section.
	ctx := &Context{TaxDebts: []Debt{{Code: "vat", Amount: 0}}}
	assert.Equal(t, "No business data available", Format(ctx, 0))
}

func TestFormatDropsLowestPrioritySectionsFirst(t *testing.T) {
	ctx := fullContext()
	full := Format(ctx, 10000)
	require.Contains(t, full, "DOCUMENTS:")

	// A budget below the full size drops tail sections, keeping balances.
	budget := utf8.RuneCountInString(full) - 1
	tight := Format(ctx, budget)
	assert.Contains(t, tight, "Account balances")
	assert.NotContains(t, tight, "DOCUMENTS:")
	assert.LessOrEqual(t, utf8.RuneCountInString(tight), budget)
}

func TestFormatNeverDropsLastSection(t *testing.T) {
	ctx := &Context{Balances: &Balances{Account1: 1000000}}
	out := Format(ctx, 10)
	assert.NotEmpty(t, out)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 10)
}

func TestFormatCutNeverSplitsCharacters(t *testing.T) {
	// Amounts end with the multi-byte ruble sign; every cut point must
	// still yield valid UTF-8.
	ctx := &Context{Balances: &Balances{Account1: 1000000, Account2: 500}}
	full := Format(ctx, 10000)
	for max := 1; max <= utf8.RuneCountInString(full); max++ {
		out := Format(ctx, max)
		assert.True(t, utf8.ValidString(out), "budget %d", max)
		assert.LessOrEqual(t, utf8.RuneCountInString(out), max)
	}
}

func TestFormatReceiptsKeepLastFive(t *testing.T) {
	var receipts []Receipt
	for i := 0; i < 8; i++ {
		receipts = append(receipts, Receipt{
			OperationType: "Sale",
			Amount:        float64(100 * (i + 1)),
			Date:          "2025-03-01",
		})
	}
	out := Format(&Context{Receipts: receipts}, 0)
	assert.Contains(t, out, "RECEIPTS: 8 operations")
	assert.NotContains(t, out, "Sale: 100 ₽", "oldest receipts are dropped")
	assert.Contains(t, out, "Sale: 800 ₽")
}

func TestMoneyFormatting(t *testing.T) {
	assert.Equal(t, "1,234,567 ₽", money(1234567))
	assert.Equal(t, "0 ₽", money(0))
	assert.Equal(t, "-5,000 ₽", money(-5000))
}
