// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"html/template"
	"strings"
)

// ReplyEmailData is the content of the notification sent when an admin
// answers a contact message.
type ReplyEmailData struct {
	SiteName        string
	RecipientName   string
	OriginalSubject string
	ReplyMessage    string
	MessagesURL     string // optional link to the signed-in message list
}

// ReplySubject returns the subject line for a reply notification.
func ReplySubject(originalSubject string) string {
	s := strings.TrimSpace(originalSubject)
	if strings.HasPrefix(strings.ToLower(s), "re:") {
		return s
	}
	return "Re: " + s
}

// ReplyEmail renders a reply notification as an Email addressed to "to".
func ReplyEmail(to string, data ReplyEmailData) Email {
	var text strings.Builder
	text.WriteString("Hello " + data.RecipientName + ",\n\n")
	text.WriteString("You have a reply to your message \"" + data.OriginalSubject + "\":\n\n")
	text.WriteString(data.ReplyMessage + "\n")
	if data.MessagesURL != "" {
		text.WriteString("\nSee the whole conversation at " + data.MessagesURL + "\n")
	}
	text.WriteString("\n-- " + data.SiteName + "\n")

	var html bytes.Buffer
	if err := replyTmpl.Execute(&html, data); err != nil {
		html.Reset()
	}

	return Email{
		To:       to,
		Subject:  ReplySubject(data.OriginalSubject),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}
}

var replyTmpl = template.Must(template.New("reply").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; line-height: 1.5;">
<p>Hello {{.RecipientName}},</p>
<p>You have a reply to your message &ldquo;{{.OriginalSubject}}&rdquo;:</p>
<blockquote style="border-left: 3px solid #ccc; margin: 0; padding-left: 1em; white-space: pre-wrap;">{{.ReplyMessage}}</blockquote>
{{if .MessagesURL}}<p><a href="{{.MessagesURL}}">See the whole conversation</a></p>{{end}}
<p>&mdash; {{.SiteName}}</p>
</body>
</html>
`))
