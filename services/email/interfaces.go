package email

type EmailSender interface {
	SendEmail(to, subject, body string) error
	SendSaleReport(to string, data SaleReportData) error
}
