package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	openai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gamma-omg/chatpdf-mcp/answer"
	"github.com/gamma-omg/chatpdf-mcp/chunk"
	"github.com/gamma-omg/chatpdf-mcp/docindex"
	"github.com/gamma-omg/chatpdf-mcp/extract"
	"github.com/gamma-omg/chatpdf-mcp/retrieve"
)

func createEmbeddingFunction(cfg *Config) (embeddings.EmbeddingFunction, error) {
	if cfg.OpenAI != nil {
		ef, err := openai.NewOpenAIEmbeddingFunction(
			cfg.OpenAI.ApiKey,
			openai.WithModel(openai.EmbeddingModel(cfg.OpenAI.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedding function: %w", err)
		}

		return ef, nil
	}

	if cfg.Gemini != nil {
		ef, err := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(cfg.Gemini.ApiKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(cfg.Gemini.Model)))
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
		}

		return ef, nil
	}

	return nil, errors.New("invalid embeddings provider configuration")
}

func initDocIndexes(cfg *Config, logger *slog.Logger, reset bool) (*docindex.Registry, embeddings.EmbeddingFunction, error) {
	ef, err := createEmbeddingFunction(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding function: %w", err)
	}

	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.ChromaAddr))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	indexes := docindex.NewRegistry(client, ef, logger)
	if reset {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := indexes.Reset(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to reset document collections: %w", err)
		}
	}

	return indexes, ef, nil
}

func createComposer(cfg *Config, logger *slog.Logger) *answer.Composer {
	if cfg.LLM == nil || cfg.LLM.ApiKey == "" {
		return answer.NewComposer(nil, "", logger)
	}

	gen := answer.NewOpenAIGenerator(cfg.LLM.ApiKey, cfg.LLM.Model)
	return answer.NewComposer(gen, cfg.LLM.Model, logger)
}

func createExtractors(cfg *Config, logger *slog.Logger) []extract.Extractor {
	var ocr extract.Recognizer
	rec, err := extract.NewTesseractRecognizer(cfg.OCRLanguage)
	if err != nil {
		logger.Warn("OCR unavailable, scanned pages degrade to empty text", "error", err)
	} else {
		ocr = rec
	}

	return []extract.Extractor{
		extract.NewPDFExtractor(logger, ocr),
		&extract.UniversalExtractor{},
	}
}

func main() {
	reset := flag.Bool("reset", false, "Drop all document collections before starting if set")
	cfgPath := flag.String("config", "cfg/config.yaml", "Configuration file for the MCP server")
	flag.Parse()

	godotenv.Load()

	cfg, err := readConfig(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file: %s", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewJSONHandler(logFile, nil))

	indexes, ef, err := initDocIndexes(cfg, logger, *reset)
	if err != nil {
		log.Fatal(err)
	}

	tokenizer, err := chunk.NewTiktokenTokenizer()
	if err != nil {
		log.Fatal(err)
	}

	chunker, err := chunk.NewChunker(tokenizer, cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal(err)
	}

	reg := NewDocumentRegistry(
		indexes,
		chunk.NewNormalizer(chunker),
		retrieve.NewRetriever(indexes, ef, cfg.TopK, logger),
		createComposer(cfg, logger),
		logger,
	)
	reg.RegisterExtractor(createExtractors(cfg, logger)...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.InboxDir != "" {
		watcher := NewInboxWatcher(logger, cfg.InboxDir,
			time.Duration(cfg.MergeEventsMs)*time.Millisecond, reg)

		go func() {
			if err := watcher.Sync(ctx); err != nil {
				log.Fatal(err)
			}

			if err := watcher.Watch(ctx); err != nil {
				log.Fatal(err)
			}
		}()
	}

	srv := NewChatPDFServer(reg)
	sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", cfg.ServerAddr)))
	log.Println(sse.Start(cfg.ServerAddr))
}
