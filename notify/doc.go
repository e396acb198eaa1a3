// Package notify ships the two [authcore.Notifier] implementations: an SMTP
// mailer for production delivery of one-time codes, and a logger-backed dev
// notifier that prints codes instead of sending them.
package notify
