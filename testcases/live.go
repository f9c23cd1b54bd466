package testcases

import (
	"context"
	"os"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/joho/godotenv"
)

// InitChatModel returns a chat model configured the same way as the intake
// binary: LLM_API_KEY, LLM_BASE_URL and LLM_MODEL from the environment or
// from ../.env. The test is skipped unless INTAKE_RUN_LIVE_TESTS=1.
func InitChatModel(t *testing.T) *openai.ChatModel {
	t.Helper()
	if os.Getenv("INTAKE_RUN_LIVE_TESTS") != "1" {
		t.Skip("set INTAKE_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}

	env, err := godotenv.Read("../.env")
	if err != nil && !os.IsNotExist(err) {
		t.Skipf("failed to read ../.env: %v", err)
		return nil
	}
	lookup := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		if v := env[key]; v != "" {
			return v
		}
		return fallback
	}

	apiKey := lookup("LLM_API_KEY", "")
	if apiKey == "" {
		t.Skip("LLM_API_KEY is empty")
		return nil
	}
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  apiKey,
		Model:   lookup("LLM_MODEL", "gpt-4o-mini"),
		BaseURL: lookup("LLM_BASE_URL", ""),
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
		return nil
	}
	return chatModel
}
