package api

import "time"

// EmailSender is the outbound mail surface the handlers need. Satisfied by
// email.SMTPService.
type EmailSender interface {
	SendPasswordResetCode(to, firstName, code string, ttl time.Duration) error
	SendConfirmationCode(to, firstName, code string) error
	SendWelcome(to, firstName string) error
}
