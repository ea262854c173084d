package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hexstrike/nexus/chat"
	"github.com/hexstrike/nexus/db"
	"github.com/hexstrike/nexus/hexstrike"
	"github.com/hexstrike/nexus/llm"
	"github.com/hexstrike/nexus/utils"
)

func main() {
	configPath, err := utils.EnsureDefaultConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare config: %v\n", err)
		os.Exit(1)
	}

	config, err := utils.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(config.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := db.New(config.Data.DBPath)
	if err != nil {
		logger.Fatal("failed to open conversation store",
			zap.Error(err),
			zap.String("dbPath", config.Data.DBPath))
	}
	defer store.Close()

	hsClient := hexstrike.NewClient(config.Server.URL)
	hsClient.SetCache(store)

	registry := llm.NewRegistry(store)
	restoreActiveProvider(store, registry, logger)

	prompts, err := chat.NewPromptCatalog()
	if err != nil {
		logger.Fatal("failed to load agent catalog", zap.Error(err))
	}

	dispatcher := chat.NewDispatcher(hsClient, logger)
	client := chat.NewClient(store, registry, dispatcher, prompts, logger)

	conv, err := client.EnsureWelcomeConversation()
	if err != nil {
		logger.Fatal("failed to create welcome conversation", zap.Error(err))
	}
	if conv == nil {
		// reuse the most recently updated conversation
		summaries, err := store.ListConversations(false)
		if err != nil || len(summaries) == 0 {
			logger.Fatal("no conversation available", zap.Error(err))
		}
		conv = &summaries[0].Conversation
	}

	runShell(client, registry, conv.ID, logger)
}

// restoreActiveProvider re-activates the provider persisted from a previous
// run, if any.
func restoreActiveProvider(store *db.Store, registry *llm.Registry, logger *zap.Logger) {
	cfg, err := store.GetActiveProvider()
	if err != nil {
		logger.Warn("failed to load active provider", zap.Error(err))
		return
	}
	if cfg == nil {
		return
	}

	if _, err := registry.Activate(cfg.Name, cfg.APIKey, cfg.Model, cfg.Extra); err != nil {
		logger.Warn("failed to restore provider", zap.String("provider", cfg.Name), zap.Error(err))
		return
	}
	logger.Info("restored active provider", zap.String("provider", cfg.Name), zap.String("model", cfg.Model))
}

// runShell is a minimal line-oriented chat loop. The desktop dashboard is a
// separate application; this shell exists so the core is usable stand-alone.
func runShell(client *chat.Client, registry *llm.Registry, conversationID string, logger *zap.Logger) {
	ctx := context.Background()

	if name, model, ok := registry.ActiveInfo(); ok {
		fmt.Printf("Provider: %s (%s)\n", name, model)
	} else {
		fmt.Println(chat.NoProviderWarning)
		fmt.Println("Use /provider <name> <api-key> <model> to configure one.")
	}
	fmt.Println("Type a message, or /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/provider "):
			fields := strings.Fields(line)
			if len(fields) != 4 {
				fmt.Println("usage: /provider <name> <api-key> <model>")
				continue
			}
			if _, err := registry.Activate(fields[1], fields[2], fields[3], nil); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			name, model, _ := registry.ActiveInfo()
			fmt.Printf("Provider activated: %s (%s)\n", name, model)
		case line == "/test":
			ok, msg := client.TestConnection(ctx)
			fmt.Printf("%v: %s\n", ok, msg)
		default:
			streamReply(ctx, client, conversationID, line)
		}
	}
}

func streamReply(ctx context.Context, client *chat.Client, conversationID, text string) {
	stream, err := client.SendStream(ctx, conversationID, text)
	if err != nil {
		if errors.Is(err, llm.ErrNoActiveProvider) {
			fmt.Println(chat.NoProviderWarning)
		} else {
			fmt.Printf("error: %v\n", err)
		}
		return
	}

	for chunk := range stream {
		if chunk.Error != nil {
			fmt.Printf("\n%v\n", chunk.Error)
			return
		}
		fmt.Print(chunk.Content)
	}
	fmt.Println()
}
