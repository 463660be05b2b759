package chat

import (
	"context"
	"log"

	"dca-scanner/vars"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

func CreateOllamaChatModel(ctx context.Context, url string, modelName string) model.ToolCallingChatModel {
	chatModel, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: url,       // Ollama 服务地址
		Model:   modelName, // 模型名称
	})
	if err != nil {
		log.Fatalf("create ollama chat model failed: %v", err)
	}
	return chatModel
}

func CreateOpenAIChatModel(ctx context.Context, modelName string) model.ToolCallingChatModel {
	if vars.OPENAI_API_KEY == "" {
		log.Fatal("CHAT_BACKEND=openai 但 OPENAI_API_KEY 为空")
	}
	cfg := &openai.ChatModelConfig{
		APIKey: vars.OPENAI_API_KEY,
		Model:  modelName,
	}
	if vars.OPENAI_BASE_URL != "" {
		cfg.BaseURL = vars.OPENAI_BASE_URL
	}
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		log.Fatalf("create openai chat model failed: %v", err)
	}
	return chatModel
}

// CreateChatModel 按 CHAT_BACKEND 选择后端，默认本地 Ollama
func CreateChatModel(ctx context.Context) model.ToolCallingChatModel {
	if vars.CHAT_BACKEND == vars.BACKEND_OPENAI {
		return CreateOpenAIChatModel(ctx, vars.GPT4OMINI)
	}
	return CreateOllamaChatModel(ctx, vars.OLLAMA_PATH, vars.QWEN7B)
}
