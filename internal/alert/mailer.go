// Package alert implementa el sink externo de notificaciones para actividad
// sospechosa. En prod, cada SecurityAlert se reenvía por email al operador.
package alert

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	mail "github.com/go-mail/mail"

	"github.com/ChayanSD/web-sub001/internal/observability/logger"
	"github.com/ChayanSD/web-sub001/internal/store/core"
)

// SMTPNotifier envía alertas por SMTP. Implementa audit.Notifier.
type SMTPNotifier struct {
	Host               string
	Port               int
	From               string
	To                 string
	User               string
	Pass               string
	TLSMode            string // "auto" | "starttls" | "ssl" | "none"
	InsecureSkipVerify bool
}

// NewSMTPNotifier crea el notifier con los parámetros dados.
func NewSMTPNotifier(host string, port int, from, to, user, pass string) *SMTPNotifier {
	return &SMTPNotifier{
		Host:    host,
		Port:    port,
		From:    from,
		To:      to,
		User:    user,
		Pass:    pass,
		TLSMode: "auto",
	}
}

// Notify envía la alerta. Best-effort: el caller ya trata esto como
// fire-and-forget, acá solo reportamos el error para el log local.
func (n *SMTPNotifier) Notify(ctx context.Context, a core.SecurityAlert) error {
	log := logger.From(ctx).With(
		logger.Component("alert"),
		logger.String("host", n.Host),
		logger.ID(a.ID),
	)

	subject := fmt.Sprintf("[%s] security alert: %s key", strings.ToUpper(string(a.Severity)), a.KeyType)

	var b strings.Builder
	fmt.Fprintf(&b, "Alert ID:  %s\n", a.ID)
	fmt.Fprintf(&b, "Key type:  %s\n", a.KeyType)
	if a.Operation != "" {
		fmt.Fprintf(&b, "Operation: %s\n", a.Operation)
	}
	fmt.Fprintf(&b, "Severity:  %s\n", a.Severity)
	fmt.Fprintf(&b, "Reason:    %s\n", a.Reason)
	fmt.Fprintf(&b, "When:      %s\n", a.Timestamp.Format("2006-01-02 15:04:05 MST"))
	if len(a.Details) > 0 {
		b.WriteString("\nDetails:\n")
		for k, v := range a.Details {
			fmt.Fprintf(&b, "  %s: %v\n", k, v)
		}
	}

	m := mail.NewMessage()
	m.SetHeader("From", n.From)
	m.SetHeader("To", n.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", b.String())

	d := mail.NewDialer(n.Host, n.Port, n.User, n.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         n.Host,
		InsecureSkipVerify: n.InsecureSkipVerify, // solo dev
	}

	switch n.TLSMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.TLSConfig = &tls.Config{InsecureSkipVerify: n.InsecureSkipVerify}
	default:
		// "auto"/"starttls": go-mail negocia STARTTLS si corresponde
	}

	if err := d.DialAndSend(m); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}

	log.Info("alert notification sent", logger.Severity(string(a.Severity)))
	return nil
}
