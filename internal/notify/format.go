package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/onehud/registrar/internal/registration"
)

// TimeLayout renders timestamps the way vi-VN locales print them.
const TimeLayout = "15:04:05 2/1/2006"

// FormatRegistration renders the chat message for req.
//
// Email and MAC are HTML-escaped when parseMode is HTML so that user input
// cannot inject markup into the message.
func FormatRegistration(req registration.Request, loc *time.Location, parseMode string) string {
	if loc == nil {
		loc = time.UTC
	}
	email, mac := req.Email, req.DeviceID
	if strings.EqualFold(parseMode, "HTML") {
		email = html.EscapeString(email)
		mac = html.EscapeString(mac)
	}
	return fmt.Sprintf("🆕 Đăng ký mới!\n\n📧 Email: %s\n🔐 MAC: %s\n⏰ Thời gian: %s",
		email, mac, req.SubmittedAt.In(loc).Format(TimeLayout))
}
