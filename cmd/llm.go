package cmd

import (
	"context"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/viper"

	"github.com/joescharf/civic/internal/llm"
	"github.com/joescharf/civic/internal/models"
)

const (
	defaultModel = "claude-haiku-4-5-20251001"
	llmTimeout   = 60 * time.Second
)

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	var opts []option.RequestOption
	if base := viper.GetString("anthropic.base_url"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"), opts...)
}

// inferIssueFields fills in a missing category or priority, asking the LLM
// when one is configured and falling back to keyword rules.
func inferIssueFields(s *appState, in *models.NewIssue, needCategory, needPriority bool) {
	if !needCategory && !needPriority {
		return
	}

	if client := newLLMClient(); client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), llmTimeout)
		defer cancel()
		class, err := client.ClassifyIssue(ctx, in.Location, in.Description, s.issues.Categories())
		if err == nil {
			if needCategory {
				in.Category = class.Category
			}
			if needPriority {
				in.Priority = class.Priority
			}
			logger.Debug("issue classified by llm", "category", class.Category, "priority", class.Priority)
			return
		}
		ui.Warning("LLM classification failed, using keyword rules: %v", err)
	}

	if needCategory {
		in.Category = classifyIssueCategory(in.Location + " " + in.Description)
	}
	if needPriority {
		in.Priority = classifyIssuePriority(in.Description)
	}
}
