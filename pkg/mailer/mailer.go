package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Mailer handles sending emails
type Mailer struct {
	config Config
}

// New creates a new Mailer instance
func New(cfg Config) *Mailer {
	return &Mailer{config: cfg}
}

var mentionTemplate = template.Must(template.New("mention").Parse(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
	<h2>You were mentioned</h2>
	<p>Hi {{.Name}},</p>
	<p>You were mentioned in <strong>{{.Conversation}}</strong>:</p>
	<blockquote style="border-left: 3px solid #ccc; padding-left: 12px; color: #555;">{{.Preview}}</blockquote>
	<p>Open Huddle to reply.</p>
</body>
</html>
`))

// SendMentionAlert emails a user when they are mentioned in a conversation
// that has email alerts enabled.
func (m *Mailer) SendMentionAlert(toEmail, userName, conversationName, preview string) error {
	subject := fmt.Sprintf("Huddle - you were mentioned in %s", conversationName)

	var body bytes.Buffer
	err := mentionTemplate.Execute(&body, map[string]string{
		"Name":         userName,
		"Conversation": conversationName,
		"Preview":      preview,
	})
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return m.send(toEmail, subject, body.String())
}

// send delivers an email via SMTP
func (m *Mailer) send(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": `text/html; charset="UTF-8"`,
	}

	var msg bytes.Buffer
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n" + htmlBody)

	// Mailpit and other dev relays accept unauthenticated mail
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	return smtp.SendMail(addr, auth, m.config.From, []string{to}, msg.Bytes())
}
