package email

import (
	"gopkg.in/gomail.v2"
)

type Sender struct {
	dialer *gomail.Dialer
	from   string
}

func NewEmailSender(host string, port int, username, password, from string) *Sender {
	dialer := gomail.NewDialer(host, port, username, password)
	return &Sender{
		dialer: dialer,
		from:   from,
	}
}

func (s *Sender) newMessage(to, subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// SendNotification mails a plain-text notice.
func (s *Sender) SendNotification(to, subject, body string) error {
	return s.dialer.DialAndSend(s.newMessage(to, subject, body))
}
