package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
)

// SMTP delivers one-time codes over implicit-TLS SMTP (port 465 style).
type SMTP struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewSMTP(host, port, username, password, from string) *SMTP {
	if from == "" {
		from = username
	}
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *SMTP) SendCode(ctx context.Context, email, displayName, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	greeting := "Hello"
	if displayName != "" {
		greeting = "Hello " + displayName
	}

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<h2>Your sign-in code</h2>
			<p>%s,</p>
			<p>Use this code to sign in. It is valid for 10 minutes and works only once.</p>
			<div style="font-size: 32px; font-weight: bold; letter-spacing: 5px;">%s</div>
			<p style="color: #6b6b6b; font-size: 13px;">If you did not request this code, ignore this email.</p>
		</div>`, greeting, code)

	msg := []byte(
		fmt.Sprintf("From: %s\r\n", s.from) +
			fmt.Sprintf("To: %s\r\n", email) +
			"Subject: Your sign-in code\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	serverAddr := s.host + ":" + s.port

	conn, err := tls.Dial("tcp", serverAddr, &tls.Config{ServerName: s.host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return err
	}

	if err := client.Mail(s.from); err != nil {
		return err
	}
	if err := client.Rcpt(email); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
