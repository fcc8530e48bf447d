/**
 * @description
 * Outbound notification emails for the contribution lifecycle: the couple
 * hears about new contributions, guests get a payment confirmation, and the
 * couple can send thank-you notes. Every attempt is written to the email
 * audit log with its outcome.
 *
 * Notification failures never propagate into the payment path; they are
 * logged and recorded, nothing more.
 *
 * @dependencies
 * - internal/store: For the email audit log.
 * - pkg/emailclient: For delivery via Resend.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/bramlijst/registry-service/internal/domain"
	"github.com/bramlijst/registry-service/internal/money"
	"github.com/bramlijst/registry-service/internal/store"
	"github.com/bramlijst/registry-service/pkg/emailclient"
)

// Notifier sends lifecycle emails and records every attempt.
type Notifier struct {
	sender emailclient.Sender
	repo   store.Repository
}

// NewNotifier creates a notifier backed by the given email sender.
func NewNotifier(sender emailclient.Sender, repo store.Repository) *Notifier {
	return &Notifier{sender: sender, repo: repo}
}

// NotifyContributionSucceeded informs the couple of a new contribution and,
// when the guest left an email address, confirms the payment to the guest.
// Both sends are best effort.
func (n *Notifier) NotifyContributionSucceeded(ctx context.Context, owner *domain.Profile, gift *domain.Gift, contribution *domain.Contribution) {
	giftName := "een verwijderd cadeau"
	if gift != nil {
		giftName = gift.Name
	}
	amount := money.FormatCents(contribution.Amount)

	ownerSubject := fmt.Sprintf("Nieuwe bijdrage van %s", contribution.GuestName)
	ownerHTML := fmt.Sprintf(
		"<p>Goed nieuws! <strong>%s</strong> heeft <strong>%s</strong> bijgedragen aan <strong>%s</strong>.</p>",
		contribution.GuestName, amount, giftName,
	)
	if contribution.Message != nil && *contribution.Message != "" {
		ownerHTML += fmt.Sprintf("<p>Persoonlijk bericht:</p><blockquote>%s</blockquote>", *contribution.Message)
	}
	ownerHTML += "<p>Bekijk alle bijdragen op je dashboard.</p>"
	n.send(ctx, owner.ID, &contribution.ID, domain.EmailContributionReceived, owner.Email, ownerSubject, ownerHTML)

	if contribution.GuestEmail == nil || *contribution.GuestEmail == "" {
		return
	}
	guestSubject := fmt.Sprintf("Bedankt voor je bijdrage aan %s", giftName)
	guestHTML := fmt.Sprintf(
		"<p>Beste %s,</p><p>Je bijdrage van <strong>%s</strong> aan <strong>%s</strong> voor %s is ontvangen.</p><p>Namens het bruidspaar: hartelijk dank!</p>",
		contribution.GuestName, amount, giftName, owner.CoupleName(),
	)
	n.send(ctx, owner.ID, &contribution.ID, domain.EmailPaymentConfirmation, *contribution.GuestEmail, guestSubject, guestHTML)
}

// SendGuestThankYou delivers the couple's thank-you note to the guest. This
// send is not best effort: the caller reports the failure to the couple so
// they can retry.
func (n *Notifier) SendGuestThankYou(ctx context.Context, owner *domain.Profile, contribution *domain.Contribution, message string) error {
	subject := fmt.Sprintf("Een bedankje van %s", owner.CoupleName())
	html := fmt.Sprintf("<p>Beste %s,</p>", contribution.GuestName)
	if message != "" {
		html += fmt.Sprintf("<blockquote>%s</blockquote>", message)
	} else {
		html += fmt.Sprintf("<p>%s bedankt je hartelijk voor je bijdrage van %s.</p>", owner.CoupleName(), money.FormatCents(contribution.Amount))
	}

	err := n.sender.Send(ctx, emailclient.Message{To: *contribution.GuestEmail, Subject: subject, HTML: html})
	n.record(ctx, owner.ID, &contribution.ID, domain.EmailThankYou, *contribution.GuestEmail, subject, err)
	return err
}

func (n *Notifier) send(ctx context.Context, userID uuid.UUID, contributionID *uuid.UUID, emailType, recipient, subject, html string) {
	err := n.sender.Send(ctx, emailclient.Message{To: recipient, Subject: subject, HTML: html})
	if err != nil {
		log.Printf("level=warn component=notifier msg=\"email send failed\" email_type=%s recipient=%s err=%v", emailType, recipient, err)
	}
	n.record(ctx, userID, contributionID, emailType, recipient, subject, err)
}

func (n *Notifier) record(ctx context.Context, userID uuid.UUID, contributionID *uuid.UUID, emailType, recipient, subject string, sendErr error) {
	now := time.Now().UTC()
	entry := domain.EmailLog{
		ID:             uuid.New(),
		UserID:         userID,
		ContributionID: contributionID,
		EmailType:      emailType,
		RecipientEmail: recipient,
		Subject:        subject,
		Status:         "sent",
		SentAt:         &now,
	}
	if sendErr != nil {
		entry.Status = "failed"
		errMsg := sendErr.Error()
		entry.ErrorMessage = &errMsg
		entry.SentAt = nil
	}
	if err := n.repo.InsertEmailLog(ctx, entry); err != nil {
		log.Printf("level=warn component=notifier msg=\"failed to write email log\" email_type=%s err=%v", emailType, err)
	}
}
