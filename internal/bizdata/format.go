package bizdata

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxChars is the default character budget for the formatted context.
const DefaultMaxChars = 1500

// Display names for tax debt codes.
var taxNames = map[string]string{
	"profit":    "Profit tax",
	"vat":       "VAT",
	"property":  "Property tax",
	"insurance": "Insurance contributions",
}

// Display names for utility debt codes.
var utilityNames = map[string]string{
	"electricity": "Electricity",
	"water":       "Water supply",
	"heating":     "Heating",
	"waste":       "Waste removal",
	"security":    "Security services",
	"internet":    "Internet",
}

// Format renders the context as a bounded natural-language block for the
// system prompt. It is pure and total: missing sections produce no text,
// and sections are dropped lowest-priority-first to respect maxChars.
// maxChars <= 0 applies DefaultMaxChars.
func Format(ctx *Context, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if ctx == nil {
		return "No business data available"
	}

	// Priority order: later sections are dropped first when over budget.
	sections := []string{
		balancesSection(ctx.Balances),
		calendarSection(ctx.CalendarEvents),
		receiptsSection(ctx.Receipts),
		inventorySection(ctx.Inventory),
		employeesSection(ctx.Employees),
		debtsSection("TAXES", ctx.TaxDebts, taxNames),
		debtsSection("UTILITIES", ctx.UtilityDebts, utilityNames),
		documentsSection(ctx.Documents),
	}

	kept := sections[:0]
	for _, s := range sections {
		if s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "No business data available"
	}

	for len(kept) > 1 && totalLen(kept) > maxChars {
		kept = kept[:len(kept)-1]
	}

	out := strings.Join(kept, "\n\n")
	if utf8.RuneCountInString(out) > maxChars {
		out = string([]rune(out)[:maxChars])
	}
	return out
}

// totalLen counts characters, not bytes: amounts carry the multi-byte
// ruble sign and the data itself may be in any language.
func totalLen(sections []string) int {
	n := 0
	for _, s := range sections {
		n += utf8.RuneCountInString(s)
	}
	// Section separators.
	return n + 2*(len(sections)-1)
}

func balancesSection(b *Balances) string {
	if b == nil || (b.Account1 == 0 && b.Account2 == 0) {
		return ""
	}
	return fmt.Sprintf("Account balances: Account 1 - %s, Account 2 - %s",
		money(b.Account1), money(b.Account2))
}

func receiptsSection(receipts []Receipt) string {
	if len(receipts) == 0 {
		return ""
	}
	var total float64
	for _, r := range receipts {
		total += r.Amount
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "RECEIPTS: %d operations totaling %s\n", len(receipts), money(total))
	sb.WriteString("Recent operations:")
	recent := receipts
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	for _, r := range recent {
		op := r.OperationType
		if op == "" {
			op = "Operation"
		}
		fmt.Fprintf(&sb, "\n  - %s: %s (%s) %s", op, money(r.Amount), r.Date, r.Description)
	}
	return sb.String()
}

func inventorySection(items []InventoryItem) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "INVENTORY: %d positions\n", len(items))
	sb.WriteString("Positions:")
	shown := items
	if len(shown) > 5 {
		shown = shown[:5]
	}
	for _, it := range shown {
		folder := it.Folder
		if folder == "" {
			folder = "Uncategorized"
		}
		if it.Price > 0 {
			fmt.Fprintf(&sb, "\n  - %s: %.0f pcs x %s = %s (category: %s)",
				it.Name, it.Quantity, money(it.Price), money(it.Quantity*it.Price), folder)
		} else {
			fmt.Fprintf(&sb, "\n  - %s: %.0f pcs (category: %s, price not set)", it.Name, it.Quantity, folder)
		}
	}
	var totalValue float64
	for _, it := range items {
		totalValue += it.Quantity * it.Price
	}
	if totalValue > 0 {
		fmt.Fprintf(&sb, "\nTotal inventory value: %s", money(totalValue))
	}
	return sb.String()
}

func employeesSection(employees []Employee) string {
	if len(employees) == 0 {
		return ""
	}
	var total float64
	for _, e := range employees {
		total += e.Salary
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "EMPLOYEES: %d people, total payroll %s\n", len(employees), money(total))
	sb.WriteString("Staff list:")
	for _, e := range employees {
		position := e.Position
		if position == "" {
			position = "not specified"
		}
		fmt.Fprintf(&sb, "\n  - %s (%s): %s", e.Name, position, money(e.Salary))
	}
	return sb.String()
}

func calendarSection(events []CalendarEvent) string {
	if len(events) == 0 {
		return ""
	}
	upcoming := make([]CalendarEvent, 0, len(events))
	for _, e := range events {
		if e.Date != "" {
			upcoming = append(upcoming, e)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Date < upcoming[j].Date })
	if len(upcoming) > 5 {
		upcoming = upcoming[:5]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "CALENDAR: %d events", len(events))
	if len(upcoming) > 0 {
		sb.WriteString("\nUpcoming events (use UPDATE_EVENT with the ID or title to modify):")
		for _, e := range upcoming {
			fmt.Fprintf(&sb, "\n  - ID: %s | Title: '%s' | ISO date: %s | Description: %s",
				e.ID, e.Title, isoDate(e.Date), e.Description)
		}
	}
	return sb.String()
}

func debtsSection(header string, debts []Debt, names map[string]string) string {
	if len(debts) == 0 {
		return ""
	}
	var sb strings.Builder
	var total float64
	wrote := false
	for _, d := range debts {
		if d.Amount <= 0 {
			continue
		}
		if !wrote {
			sb.WriteString(header + ":")
			wrote = true
		}
		name := names[d.Code]
		if name == "" {
			name = d.Code
		}
		fmt.Fprintf(&sb, "\n  - %s: %s", name, money(d.Amount))
		total += d.Amount
	}
	if !wrote {
		return ""
	}
	fmt.Fprintf(&sb, "\nTotal debt: %s", money(total))
	return sb.String()
}

func documentsSection(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "DOCUMENTS: %d files", len(docs))
	shown := docs
	if len(shown) > 3 {
		shown = shown[:3]
	}
	// Only metadata: document content never enters the context block.
	for _, d := range shown {
		docType := d.Type
		if docType == "" {
			docType = "unknown type"
		}
		fmt.Fprintf(&sb, "\n  - %s (%s, %d bytes)", d.Name, docType, d.Size)
	}
	return sb.String()
}

// isoDate normalizes an event date to YYYY-MM-DDTHH:mm where possible.
func isoDate(date string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Format("2006-01-02T15:04")
		}
	}
	if strings.Contains(date, "T") && len(date) >= 16 {
		return date[:16]
	}
	return date
}

// money formats an amount with thousands separators and the ruble sign.
func money(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.0f", v)
	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(c)
	}
	sb.WriteString(" ₽")
	return sb.String()
}
