// Package bizdata models the per-request business context snapshot.
//
// The context is a closed set of optional sections. Every section may be
// absent; the core only ever reads it, never mutates it.
package bizdata

// Context is the read-only business data snapshot attached to one chat request.
type Context struct {
	Balances       *Balances       `json:"balances,omitempty"`
	Receipts       []Receipt       `json:"receipts,omitempty"`
	Inventory      []InventoryItem `json:"inventory,omitempty"`
	Employees      []Employee      `json:"employees,omitempty"`
	CalendarEvents []CalendarEvent `json:"calendarEvents,omitempty"`
	TaxDebts       []Debt          `json:"taxDebts,omitempty"`
	UtilityDebts   []Debt          `json:"utilityDebts,omitempty"`
	Documents      []Document      `json:"documents,omitempty"`
}

// Balances holds the two account balances.
type Balances struct {
	Account1 float64 `json:"account1"`
	Account2 float64 `json:"account2"`
}

// Receipt is a single financial operation.
type Receipt struct {
	OperationType string  `json:"operationType"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Description   string  `json:"description"`
}

// InventoryItem is one stock position.
type InventoryItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Folder   string  `json:"folder"`
}

// Employee is one payroll entry.
type Employee struct {
	Name     string  `json:"name"`
	Position string  `json:"position"`
	Salary   float64 `json:"salary"`
}

// CalendarEvent is a calendar entry. ID is stable and unique within one
// snapshot; Title and Description are not guaranteed unique.
type CalendarEvent struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date,omitempty"` // ISO-8601, optional
	Description string `json:"description,omitempty"`
}

// Debt is one tax or utility debt position.
type Debt struct {
	Code   string  `json:"code"`
	Amount float64 `json:"debt"`
}

// Document is an uploaded file reference. Content is never part of the
// context; only name, type and size are exposed to the model.
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}
