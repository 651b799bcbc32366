package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/config"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/infrastructure/external/llm"
)

// Probes an LLM provider the same way the assistant settings page does,
// then optionally sends a one-line chat to confirm completions work.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config.yaml")
	provider := flag.String("provider", "", "Provider to test (lmstudio, zai, openai, anthropic); defaults to assistant.default_provider")
	baseURL := flag.String("base-url", "", "Override the provider base URL")
	model := flag.String("model", "", "Override the model")
	prompt := flag.String("prompt", "", "Send this prompt after a successful probe")
	timeout := flag.Duration("timeout", 30*time.Second, "API call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	name := *provider
	if name == "" {
		name = cfg.Assistant.DefaultProvider
	}
	defaults := cfg.Assistant.Providers[name]
	settings := entity.AISettings{
		Provider: name,
		BaseURL:  firstNonEmpty(*baseURL, defaults.BaseURL),
		APIKey:   defaults.APIKey,
		Model:    firstNonEmpty(*model, defaults.Model),
	}

	fmt.Println("=== LLM Connection Test ===")
	fmt.Printf("  Provider: %s\n", settings.Provider)
	fmt.Printf("  Base URL: %s\n", firstNonEmpty(settings.BaseURL, llm.DefaultBaseURL(settings.Provider)))
	fmt.Printf("  Model:    %s\n", firstNonEmpty(settings.Model, "(provider default)"))
	fmt.Printf("  API key:  %d chars\n", len(settings.APIKey))
	fmt.Println()

	client, err := llm.NewFactory(*timeout, logger).Build(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result := client.Probe(ctx)
	printJSON(result)
	if !result.OK {
		fmt.Fprintln(os.Stderr, "✗ Provider did not answer")
		os.Exit(1)
	}
	fmt.Printf("✓ Provider reachable via %s in %dms\n", result.Path, result.LatencyMS)

	if *prompt == "" {
		return
	}

	fmt.Println()
	fmt.Println("Sending prompt...")
	resp, err := client.Complete(ctx, port.CompletionRequest{
		Model:     settings.Model,
		Messages:  []entity.ChatMessage{{Role: entity.ChatRoleUser, Content: *prompt}},
		MaxTokens: 256,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Completion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ %s answered (%d prompt / %d completion tokens):\n\n%s\n",
		resp.Model, resp.PromptTokens, resp.CompletionTokens, resp.Content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%+v\n", v)
		return
	}
	fmt.Println(string(out))
}
