package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"dca-scanner/api/handler"
	"dca-scanner/api/router"
	"dca-scanner/job"
	"dca-scanner/logic/chat"
	"dca-scanner/logic/chunker"
	"dca-scanner/service"
	"dca-scanner/storage/es"
	"dca-scanner/storage/milvus"
	"dca-scanner/storage/postgres"
	"dca-scanner/vars"

	"github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/gin-gonic/gin"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
)

func main() {
	ctx := context.Background()

	// 1. 初始化 DB
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		vars.PGHOST, vars.PGUSER, vars.PGPWD, vars.PGDB, vars.PGPORT)
	db, err := postgres.InitDB(dsn)
	if err != nil {
		panic(err)
	}
	scanRepo := postgres.NewScanRepo(db)

	// 启动定时清理任务
	esIndexer, err := es.NewFindingIndexer([]string{vars.ESADDR}, vars.FINDINGS_INDEX)
	if err != nil {
		panic(err)
	}
	job.StartCronJob(scanRepo, esIndexer)

	// 2. 初始化 LLM Model（CHAT_BACKEND 可切 openai）
	chatModel := chat.CreateChatModel(ctx)
	embedder, err := ollama.NewEmbedder(ctx, &ollama.EmbeddingConfig{
		BaseURL: vars.OLLAMA_PATH,
		Model:   vars.NOMIC,
		Timeout: 60 * time.Second,
	})
	if err != nil {
		panic(err)
	}

	// 创建全局 Milvus Client（复用）
	milvusClient, err := client.NewClient(ctx, client.Config{
		Address: vars.MILVUSADDR,
	})
	if err != nil {
		panic(fmt.Sprintf("Milvus 连接失败:%v", err))
	}
	log.Println("✅ Milvus 全局连接已创建")

	// 3. 规则库：每次启动重建集合并灌入规则手册
	policyStore, err := milvus.NewPolicyStore(ctx, milvusClient, embedder, vars.COLLECTION, vars.PlaybookRules)
	if err != nil {
		panic(fmt.Sprintf("规则库初始化失败:%v", err))
	}
	log.Printf("✅ 规则库就绪, 共 %d 条规则", policyStore.RuleCount())

	// 4. 初始化 Service (业务层)
	analyzer := service.NewAnalyzer(chatModel, policyStore, chunker.NewDefaultSplitter())
	scanSvc := service.NewScanService(analyzer, scanRepo, esIndexer)

	// 5. 初始化 Handler (API 层)
	scanHandler := handler.NewScanHandler(scanSvc)

	// 6. 启动 Web Server
	r := gin.Default()
	router.RegisterRoutes(r, scanHandler)

	log.Println("Server running on", vars.HTTP_ADDR)
	r.Run(vars.HTTP_ADDR)
}
