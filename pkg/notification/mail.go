package notification

import (
	"fmt"
	"net/smtp"

	"github.com/raykavin/kagiline/pkg/feed"
	log "github.com/sirupsen/logrus"
)

// Mail sends notifications through an SMTP server
type Mail struct {
	auth              smtp.Auth
	smtpServerPort    int
	smtpServerAddress string
	to                string
	from              string
	sendMail          func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

type MailParams struct {
	SMTPServerPort    int
	SMTPServerAddress string
	To                string
	From              string
	Password          string
}

func NewMail(params MailParams) Mail {
	return Mail{
		from:              params.From,
		to:                params.To,
		smtpServerPort:    params.SMTPServerPort,
		smtpServerAddress: params.SMTPServerAddress,
		auth:              smtp.PlainAuth("", params.From, params.Password, params.SMTPServerAddress),
		sendMail:          smtp.SendMail,
	}
}

func (m Mail) send(subject, body string) {
	message := fmt.Sprintf("To: <%s>\r\nFrom: \"kagiline\" <%s>\r\nSubject: %s\r\n\r\n%s\r\n", m.to, m.from, subject, body)

	err := m.sendMail(
		fmt.Sprintf("%s:%d", m.smtpServerAddress, m.smtpServerPort),
		m.auth,
		m.from,
		[]string{m.to},
		[]byte(message),
	)
	if err != nil {
		log.WithError(err).Error("notification/mail: failed to send email")
	}
}

func (m Mail) Notify(text string) {
	m.send("kagiline", text)
}

func (m Mail) OnEvent(event feed.Event) {
	if title, body, ok := describe(event); ok {
		m.send(title, body)
	}
}

func (m Mail) OnError(err error) {
	m.send("🛑 ERROR", err.Error())
}
