package report

import "time"

// Kind names an exportable report
type Kind string

const (
	KindOrders Kind = "orders"
	KindUsers  Kind = "users"
)

// ReportFilter narrows report rows by text and creation date
type ReportFilter struct {
	Search string     `form:"search" json:"search"`
	From   *time.Time `form:"from" json:"from" time_format:"2006-01-02" time_utc:"1"`
	To     *time.Time `form:"to" json:"to" time_format:"2006-01-02" time_utc:"1"`
	Format string     `form:"format" json:"format" binding:"omitempty,oneof=csv xlsx pdf"`
}

// OrderRow is one line of the orders report
type OrderRow struct {
	OrderID       string `csv:"Order ID" json:"orderId"`
	CustomerName  string `csv:"Customer Name" json:"customerName"`
	PaymentStatus string `csv:"Payment Status" json:"paymentStatus"`
	Amount        string `csv:"Amount" json:"amount"`
	Date          string `csv:"Date" json:"date"`
	PaymentMethod string `csv:"Payment Method" json:"paymentMethod"`
}

// UserRow is one line of the users report
type UserRow struct {
	UserID   string `csv:"User ID" json:"userId"`
	Name     string `csv:"Name" json:"name"`
	Email    string `csv:"Email" json:"email"`
	JoinDate string `csv:"Join Date" json:"joinDate"`
}

// ExportResult is a rendered report file
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}
