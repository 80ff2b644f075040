package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"estately/internal/engine/webhooks"
	"estately/internal/platform/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	file := flag.String("file", "", "Body to sign; stdin when empty")
	url := flag.String("url", "", "POST the signed body to this URL")
	deliveryID := flag.String("delivery-id", "", "X-Delivery-ID to send with -url; random when empty")
	flag.Parse()

	if err := run(*configPath, *file, *url, *deliveryID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, file, url, deliveryID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	body, err := readBody(file)
	if err != nil {
		return err
	}

	verifier, err := webhooks.NewVerifier(webhooks.Config{
		Secret:    cfg.Webhooks.Secret,
		Algorithm: cfg.Webhooks.Algorithm,
		Encoding:  cfg.Webhooks.Encoding,
		Prefix:    cfg.Webhooks.Prefix,
	})
	if err != nil {
		return err
	}

	signature, err := verifier.Sign(body)
	if err != nil {
		return fmt.Errorf("failed to sign body: %w", err)
	}

	header := cfg.Webhooks.SignatureHeader
	if header == "" {
		header = "X-Signature"
	}

	if strings.TrimSpace(url) == "" {
		fmt.Printf("%s: %s\n", header, signature)
		return nil
	}

	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}
	return send(url, header, signature, deliveryID, body)
}

func readBody(file string) ([]byte, error) {
	if file == "" {
		body, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return body, nil
	}
	body, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return body, nil
}

func send(url, header, signature, deliveryID string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	request.Header.Set(header, signature)
	request.Header.Set("X-Delivery-ID", deliveryID)
	request.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook failed: %s %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	fmt.Printf("Webhook status: %s %s\n", resp.Status, strings.TrimSpace(string(payload)))
	return nil
}
