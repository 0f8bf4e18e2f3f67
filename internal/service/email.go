package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
)

type sendgridEmailService struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func NewSendGridEmailService(apiKey, fromEmail, fromName string) EmailService {
	return &sendgridEmailService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *sendgridEmailService) SendPaymentFailureNotice(ctx context.Context, email string, amount decimal.Decimal, reason string, nextRetry time.Time) error {
	subject := "Payment attempt unsuccessful"
	plainText := fmt.Sprintf(
		"We were unable to collect your scheduled payment of $%s (%s). We will retry on %s. Please make sure your payment method is up to date.",
		amount.StringFixed(2), reason, nextRetry.Format("January 2, 2006"))
	htmlContent := fmt.Sprintf(`
		<html>
			<body>
				<h2>Payment attempt unsuccessful</h2>
				<p>We were unable to collect your scheduled payment of <strong>$%s</strong>.</p>
				<p>Reason: %s</p>
				<p>We will retry on <strong>%s</strong>. Please make sure your payment method is up to date.</p>
			</body>
		</html>
	`, amount.StringFixed(2), reason, nextRetry.Format("January 2, 2006"))

	return s.send(email, subject, plainText, htmlContent)
}

func (s *sendgridEmailService) SendPlanCompletedNotice(ctx context.Context, email string, totalPaid decimal.Decimal) error {
	subject := "Your payment plan is complete"
	plainText := fmt.Sprintf(
		"All scheduled payments have been collected. Total paid: $%s. Thank you.",
		totalPaid.StringFixed(2))
	htmlContent := fmt.Sprintf(`
		<html>
			<body>
				<h2>Payment plan complete</h2>
				<p>All scheduled payments have been collected.</p>
				<p>Total paid: <strong>$%s</strong></p>
				<p>Thank you.</p>
			</body>
		</html>
	`, totalPaid.StringFixed(2))

	return s.send(email, subject, plainText, htmlContent)
}

func (s *sendgridEmailService) SendFinancingDecisionNotice(ctx context.Context, email, decision, detail string) error {
	subject := fmt.Sprintf("Your financing application was %s", decision)
	plainText := detail
	htmlContent := fmt.Sprintf(`
		<html>
			<body>
				<h2>Financing application %s</h2>
				<p>%s</p>
			</body>
		</html>
	`, decision, detail)

	return s.send(email, subject, plainText, htmlContent)
}

func (s *sendgridEmailService) send(to, subject, plainText, htmlContent string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	recipient := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, recipient, plainText, htmlContent)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	return nil
}
