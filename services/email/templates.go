package email

import (
	"bytes"
	"html/template"
)

// SaleReportLabels are the localized strings of the sale report.
type SaleReportLabels struct {
	Subject      string
	Title        string
	Unverified   string
	Checkout     string
	Customer     string
	Email        string
	Phone        string
	Tickets      string
	Amount       string
	Confirmation string
	Transaction  string
	Card         string
	Voucher      string
	Date         string
}

type SaleReportData struct {
	Lang           string
	Dir            string
	CheckoutID     string
	Name           string
	CustomerEmail  string
	CustomerPhone  string
	Quantity       int
	Amount         string
	CurrencySymbol string
	Confirmation   string
	TransactionID  string
	LastDigits     string
	Voucher        string
	Date           string
	Labels         SaleReportLabels
}

var saleReportTemplate = template.Must(template.New("sale_report").Parse(SaleReportEmailTemplate))

// RenderSaleReport returns the subject and HTML body of the report.
func RenderSaleReport(data SaleReportData) (string, string, error) {
	if data.Dir == "" {
		data.Dir = "rtl"
	}
	var buf bytes.Buffer
	if err := saleReportTemplate.Execute(&buf, data); err != nil {
		return "", "", err
	}
	subject := data.Labels.Subject
	if data.Confirmation != "" {
		subject += " " + data.Confirmation
	}
	return subject, buf.String(), nil
}

const SaleReportEmailTemplate = `
<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
	<meta charset="UTF-8">
	<title>{{.Labels.Title}}</title>
</head>
<body style="margin: 0; padding: 0; background-color: #f9fafb; font-family: Arial, sans-serif;">
	<table role="presentation" cellspacing="0" cellpadding="0" border="0" width="100%" style="background-color: #f9fafb;">
		<tr>
			<td align="center" style="padding: 40px 20px;">
				<table role="presentation" cellspacing="0" cellpadding="0" border="0" width="600" style="max-width: 600px; background-color: #ffffff; border-radius: 12px;">
					<tr>
						<td style="padding: 32px;">
							<h1 style="margin: 0 0 16px; font-size: 22px; color: #111827;">{{.Labels.Title}}</h1>
							<p style="margin: 0 0 24px; padding: 12px; font-size: 14px; color: #92400e; background-color: #fef3c7; border-radius: 8px;">{{.Labels.Unverified}}</p>
							<table role="presentation" cellspacing="0" cellpadding="6" border="0" width="100%" style="font-size: 15px; color: #111827;">
								<tr><td style="font-weight: 600;">{{.Labels.Checkout}}</td><td>{{.CheckoutID}}</td></tr>
								<tr><td style="font-weight: 600;">{{.Labels.Customer}}</td><td>{{.Name}}</td></tr>
								{{if .CustomerEmail}}<tr><td style="font-weight: 600;">{{.Labels.Email}}</td><td>{{.CustomerEmail}}</td></tr>{{end}}
								{{if .CustomerPhone}}<tr><td style="font-weight: 600;">{{.Labels.Phone}}</td><td>{{.CustomerPhone}}</td></tr>{{end}}
								<tr><td style="font-weight: 600;">{{.Labels.Tickets}}</td><td>{{.Quantity}}</td></tr>
								<tr><td style="font-weight: 600;">{{.Labels.Amount}}</td><td>{{.Amount}} {{.CurrencySymbol}}</td></tr>
								<tr><td style="font-weight: 600;">{{.Labels.Confirmation}}</td><td>{{.Confirmation}}</td></tr>
								{{if .TransactionID}}<tr><td style="font-weight: 600;">{{.Labels.Transaction}}</td><td>{{.TransactionID}}</td></tr>{{end}}
								{{if .LastDigits}}<tr><td style="font-weight: 600;">{{.Labels.Card}}</td><td>**** {{.LastDigits}}</td></tr>{{end}}
								{{if .Voucher}}<tr><td style="font-weight: 600;">{{.Labels.Voucher}}</td><td>{{.Voucher}}</td></tr>{{end}}
								<tr><td style="font-weight: 600;">{{.Labels.Date}}</td><td>{{.Date}}</td></tr>
							</table>
						</td>
					</tr>
				</table>
			</td>
		</tr>
	</table>
</body>
</html>
`
