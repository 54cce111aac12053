package checks

// Canonical column labels shared by the ledger templates. Uploads keep
// whatever extra columns they carry; checks only read these.
const (
	fieldEntryNo      = "Journal Entry Number"
	fieldPostingDate  = "Posting Date"
	fieldAmount       = "Amount"
	fieldNarration    = "Narration"
	fieldAccountCode  = "Account Code"
	fieldInvoiceNo    = "Invoice Number"
	fieldInvoiceDate  = "Invoice Date"
	fieldInvoiceValue = "Invoice Value"
	fieldItemCode     = "Item Code"
	fieldPurchaseDate = "Purchase Date"
	fieldRate         = "Rate"
	fieldVendorName   = "Vendor Name"
	fieldEmployeeCode = "Employee Code"
	fieldEmployeeName = "Employee Name"
	fieldPayPeriod    = "Pay Period"
	fieldPAN          = "PAN"
	fieldCustomerCode = "Customer Code"
	fieldCustomerName = "Customer Name"
	fieldDueDate      = "Due Date"
	fieldOutstanding  = "Outstanding Value"
)
