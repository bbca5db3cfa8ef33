package mail

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// LinkData fills the reset and verification templates.
type LinkData struct {
	Business string
	Link     string
}

var (
	resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(
		`<p>A password reset was requested for your {{.Business}} account.</p>` +
			`<p><a href="{{.Link}}">Reset your password</a></p>` +
			`<p>If you did not ask for this, ignore this email.</p>`))
	resetText = texttemplate.Must(texttemplate.New("reset").Parse(
		"A password reset was requested for your {{.Business}} account.\n\n" +
			"Reset your password: {{.Link}}\n\n" +
			"If you did not ask for this, ignore this email.\n"))

	verifyHTML = htmltemplate.Must(htmltemplate.New("verify").Parse(
		`<p>Confirm your email address for {{.Business}}.</p>` +
			`<p><a href="{{.Link}}">Verify email</a></p>`))
	verifyText = texttemplate.Must(texttemplate.New("verify").Parse(
		"Confirm your email address for {{.Business}}.\n\n" +
			"Verify email: {{.Link}}\n"))
)

// PasswordReset builds the reset message for to.
func PasswordReset(to string, data LinkData) (Message, error) {
	return render(to, subject(data.Business, "Password reset"), data, resetText, resetHTML)
}

// EmailVerification builds the verification message for to.
func EmailVerification(to string, data LinkData) (Message, error) {
	return render(to, subject(data.Business, "Verify your email"), data, verifyText, verifyHTML)
}

func subject(business, s string) string {
	if strings.TrimSpace(business) == "" {
		return s
	}
	return business + ": " + s
}

func render(to, subj string, data LinkData, text *texttemplate.Template, html *htmltemplate.Template) (Message, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Message{}, err
	}
	if err := html.Execute(&hb, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subj, Text: tb.String(), HTML: hb.String()}, nil
}
