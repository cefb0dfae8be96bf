package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/llm-email-classifier/internal/core"
	"github.com/mikey/llm-email-classifier/internal/di"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	service *core.ClassificationService,
	provider core.ModelProvider,
) error {
	defer logger.Sync()

	// Read email from file or stdin
	var emailReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	from := msg.Header.Get("From")
	subject := msg.Header.Get("Subject")

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}
	body := string(bodyBytes)

	emailID := strings.Trim(msg.Header.Get("Message-Id"), "<>")
	if emailID == "" {
		emailID = fmt.Sprintf("cli-%d", time.Now().UnixNano())
	}

	input := &core.ClassificationInput{
		EmailID: emailID,
		Subject: subject,
		Body:    body,
		Sender:  from,
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Body length: %d bytes\n", len(body))
	fmt.Printf("\n")

	fmt.Printf("=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", flags.Provider)
	fmt.Printf("Thresholds: high %.2f, low %.2f, max depth %d\n",
		flags.HighThreshold, flags.LowThreshold, flags.MaxDepth)

	startTime := time.Now()
	result, err := service.Classify(context.Background(), input)
	if err != nil {
		logger.Fatal("Failed to classify email", zap.Error(err))
	}
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Category: %s\n", result.Category)
	fmt.Printf("Confidence: %.4f\n", result.Confidence)
	fmt.Printf("Decision: %s\n", result.Decision)
	fmt.Printf("Path taken: %s\n", formatPath(result.PathTaken))
	fmt.Printf("Reasoning: %s\n", result.Reasoning)
	if len(result.Keywords) > 0 {
		fmt.Printf("Keywords: %s\n", strings.Join(result.Keywords, ", "))
	}
	if result.Anomalous {
		fmt.Printf("Anomalous: true (provider confidence was out of range)\n")
	}
	fmt.Printf("Model used: %s\n", result.ModelUsed)
	fmt.Printf("Processing time: %v\n", duration)

	// Close any resources that need closing
	if closer, ok := provider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close model provider", zap.Error(err))
		}
	}
	return nil
}

func formatPath(path []core.AttemptKind) string {
	if len(path) == 0 {
		return "(none)"
	}
	parts := make([]string, len(path))
	for i, kind := range path {
		parts[i] = string(kind)
	}
	return strings.Join(parts, " -> ")
}
