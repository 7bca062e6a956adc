package email

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/kickoffclub/hq-backend/pkg/config"
	pkgerrors "github.com/kickoffclub/hq-backend/pkg/errors"
	"github.com/kickoffclub/hq-backend/pkg/enums"
)

// Sender delivers transactional email. Callers treat failures as
// best-effort: log and move on, never block the triggering operation.
type Sender interface {
	SendSubscriptionActivated(ctx context.Context, toEmail, toName string, tier enums.SubscriptionTier) error
	SendSubscriptionCanceled(ctx context.Context, toEmail, toName string) error
	SendCertificateIssued(ctx context.Context, toEmail, toName, courseTitle, serial string) error
}

type sendClient interface {
	SendWithContext(ctx context.Context, message *mail.SGMailV3) (*rest.Response, error)
}

type sendgridSender struct {
	client sendClient
	from   *mail.Email
}

// NewSendgridSender builds a Sender backed by the SendGrid v3 mail API.
func NewSendgridSender(cfg config.SendgridConfig) (Sender, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, fmt.Errorf("sendgrid from address required")
	}
	return &sendgridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.DefaultFrom),
	}, nil
}

func (s *sendgridSender) SendSubscriptionActivated(ctx context.Context, toEmail, toName string, tier enums.SubscriptionTier) error {
	subject := "Welcome to Kickoff Club HQ"
	plain := fmt.Sprintf(
		"Hi %s,\n\nYour %s membership is now active. All %s courses are unlocked.\n\nSee you on the pitch,\nKickoff Club HQ",
		displayName(toName), tier, tier,
	)
	return s.send(ctx, toEmail, toName, subject, plain)
}

func (s *sendgridSender) SendSubscriptionCanceled(ctx context.Context, toEmail, toName string) error {
	subject := "Your Kickoff Club HQ membership has ended"
	plain := fmt.Sprintf(
		"Hi %s,\n\nYour membership has ended and your account is back on the free plan. You can rejoin any time from your account page.\n\nKickoff Club HQ",
		displayName(toName),
	)
	return s.send(ctx, toEmail, toName, subject, plain)
}

func (s *sendgridSender) SendCertificateIssued(ctx context.Context, toEmail, toName, courseTitle, serial string) error {
	subject := fmt.Sprintf("Certificate earned: %s", courseTitle)
	plain := fmt.Sprintf(
		"Hi %s,\n\nCongratulations on completing %s! Your certificate serial is %s. You can view it any time under My Certificates.\n\nKickoff Club HQ",
		displayName(toName), courseTitle, serial,
	)
	return s.send(ctx, toEmail, toName, subject, plain)
}

func (s *sendgridSender) send(ctx context.Context, toEmail, toName, subject, plain string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient email required")
	}

	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(s.from, subject, to, plain, "")

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProvider, err, "sending email")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return pkgerrors.New(pkgerrors.CodeProvider, "sendgrid rejected the message").
			WithDetails(map[string]any{"status_code": resp.StatusCode})
	}
	return nil
}

func displayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "there"
	}
	return name
}
