package service

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// AssistantPrompts holds the assistant's system prompt and the template used to
// describe a contract the conversation refers to
type AssistantPrompts struct {
	System          string `yaml:"system"`
	ContractContext string `yaml:"contract_context"`
	DocumentLimit   int    `yaml:"document_limit"`
}

// DefaultAssistantPrompts is used when no prompts file is configured
func DefaultAssistantPrompts() *AssistantPrompts {
	return &AssistantPrompts{
		System: "You are a contract review assistant. Answer concisely and point out " +
			"risks in payment terms, liability and termination clauses.",
		ContractContext: "Contract {{.Contract.Number}} \"{{.Contract.Title}}\" with {{.Contract.Counterparty}}, " +
			"amount {{printf \"%.2f\" .Contract.Amount}} {{.Contract.Currency}}, type {{.Contract.Type}}, status {{.Contract.Status}}." +
			"{{range .Documents}}\n\nDocument {{.Name}}:\n{{.Text}}{{end}}",
		DocumentLimit: 4000,
	}
}

// LoadAssistantPrompts reads prompts from a YAML file, keeping defaults for missing keys
func LoadAssistantPrompts(path string) (*AssistantPrompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultAssistantPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if _, err := template.New("contract").Parse(prompts.ContractContext); err != nil {
		return nil, fmt.Errorf("invalid contract_context template: %w", err)
	}
	return prompts, nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
