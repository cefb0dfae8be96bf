package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/llm-email-classifier/internal/core"
	"go.uber.org/zap"
)

// HeaderNames are the message headers the SMTP gateway annotates
type HeaderNames struct {
	Category   string
	Confidence string
	Decision   string
	Reason     string
}

// SMTPGateway implements a Postfix content filter that classifies inbound
// messages and annotates them with classification headers. Classification
// failures never bounce mail; the message passes with an error annotation.
type SMTPGateway struct {
	service        *core.ClassificationService
	logger         *zap.Logger
	listenAddr     string
	server         *smtp.Server
	headers        HeaderNames
	postfixAddr    string
	postfixPort    int
	postfixEnabled bool
	requestTimeout time.Duration
}

// NewSMTPGateway creates a new SMTP gateway
func NewSMTPGateway(
	service *core.ClassificationService,
	logger *zap.Logger,
	listenAddr string,
	headers HeaderNames,
	postfixAddr string,
	postfixPort int,
	postfixEnabled bool,
	requestTimeout time.Duration,
) *SMTPGateway {
	return &SMTPGateway{
		service:        service,
		logger:         logger,
		listenAddr:     listenAddr,
		headers:        headers,
		postfixAddr:    postfixAddr,
		postfixPort:    postfixPort,
		postfixEnabled: postfixEnabled,
		requestTimeout: requestTimeout,
	}
}

// Start starts the SMTP gateway
func (g *SMTPGateway) Start() error {
	g.server = smtp.NewServer(&smtpBackend{gateway: g})

	g.server.Addr = g.listenAddr
	g.server.Domain = "localhost"
	g.server.ReadTimeout = 30 * time.Second
	g.server.WriteTimeout = 30 * time.Second
	g.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	g.server.MaxRecipients = 50
	g.server.AllowInsecureAuth = true

	g.logger.Info("SMTP gateway starting", zap.String("address", g.listenAddr))

	go func() {
		if err := g.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				g.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP gateway
func (g *SMTPGateway) Stop() error {
	if g.server != nil {
		return g.server.Close()
	}
	return nil
}

// annotations renders the classification headers to prepend to a message
func (g *SMTPGateway) annotations(result *core.ClassificationResult, classifyErr error) string {
	var sb strings.Builder
	if classifyErr != nil {
		fmt.Fprintf(&sb, "%s: unknown\r\n", g.headers.Category)
		fmt.Fprintf(&sb, "%s: classification failed\r\n", g.headers.Reason)
		return sb.String()
	}
	fmt.Fprintf(&sb, "%s: %s\r\n", g.headers.Category, result.Category)
	fmt.Fprintf(&sb, "%s: %.4f\r\n", g.headers.Confidence, result.Confidence)
	fmt.Fprintf(&sb, "%s: %s\r\n", g.headers.Decision, result.Decision)
	fmt.Fprintf(&sb, "%s: %s\r\n", g.headers.Reason, sanitizeHeaderValue(result.Reasoning))
	return sb.String()
}

// sanitizeHeaderValue folds a free-text value into a single header line
func sanitizeHeaderValue(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	if len(v) > 500 {
		v = v[:500]
	}
	return v
}

// sendToPostfix re-injects the annotated message into Postfix using go-smtp
func (g *SMTPGateway) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := fmt.Sprintf("%s:%d", g.postfixAddr, g.postfixPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			g.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		g.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	gateway *SMTPGateway
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		gateway:    b.gateway,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	gateway    *SMTPGateway
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// Logout handles session termination
func (s *smtpSession) Logout() error {
	return nil
}

// AuthPlain handles PLAIN authentication (not needed for the gateway)
func (s *smtpSession) AuthPlain(_, _ string) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.gateway.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	msg, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.gateway.logger.Error("Failed to parse email message", zap.Error(err))
		return err
	}

	textContent, err := extractTextFromMessage(msg)
	if err != nil {
		s.gateway.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	emailID := msg.Header.Get("Message-Id")
	if emailID == "" {
		emailID = fmt.Sprintf("smtp-%d", time.Now().UnixNano())
	}

	input := &core.ClassificationInput{
		EmailID: emailID,
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Body:    textContent,
		Sender:  s.sender,
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.gateway.requestTimeout)
	defer cancel()

	result, classifyErr := s.gateway.service.Classify(ctx, input)
	if classifyErr != nil {
		s.gateway.logger.Error("Failed to classify message",
			zap.Error(classifyErr),
			zap.String("email_id", emailID),
			zap.String("sender", s.sender))
	} else {
		s.gateway.logger.Info("Message classified",
			zap.String("email_id", emailID),
			zap.String("category", result.Category),
			zap.Float64("confidence", result.Confidence),
			zap.String("decision", string(result.Decision)))
	}

	// Prepend annotation headers to the original message
	annotated := append([]byte(s.gateway.annotations(result, classifyErr)), rawData...)

	if s.gateway.postfixEnabled {
		if err := s.gateway.sendToPostfix(s.sender, s.recipients, annotated); err != nil {
			s.gateway.logger.Error("Failed to re-inject message", zap.Error(err))
			return err
		}
	}

	return nil
}
