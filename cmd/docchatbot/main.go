package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"github.com/robertluwang/DocChatbot/internal/chatlog"
	"github.com/robertluwang/DocChatbot/internal/config"
	"github.com/robertluwang/DocChatbot/internal/domain"
	"github.com/robertluwang/DocChatbot/internal/engine"
	"github.com/robertluwang/DocChatbot/internal/provider"
	"github.com/robertluwang/DocChatbot/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var useTUI bool
	var indexName string
	var folder string
	var verbose bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docchatbot/config.yaml if not provided)")
	flag.BoolVar(&useTUI, "tui", false, "Run the chat TUI instead of the menu")
	flag.StringVar(&indexName, "index", "", "Existing index to chat against (TUI mode)")
	flag.StringVar(&folder, "folder", "", "Document folder for long-context chat (TUI mode)")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	logger := log.Logger{
		Level:  log.InfoLevel,
		Writer: &log.ConsoleWriter{ColorOutput: true, Writer: os.Stderr},
	}
	if verbose {
		logger.Level = log.DebugLevel
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	embedder, err := provider.NewEmbedder(cfg.Embedding, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("embedder init failed")
	}
	generator, err := provider.NewGenerator(cfg.LLM, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("generator init failed")
	}

	eng, err := engine.New(engine.Config{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
		IndexRoot:    cfg.Index.Root,
		ChatLogDir:   cfg.ChatLog.Dir,
		TopK:         cfg.Index.TopK,
	}, embedder, generator, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}

	ctx := context.Background()

	if useTUI {
		runTUI(ctx, eng, indexName, folder, logger)
		return
	}

	cli := &menuCLI{
		engine: eng,
		in:     bufio.NewReader(os.Stdin),
		ctx:    ctx,
	}
	cli.run()
}

// chatAdapter binds the engine's dispatch to the TUI's blocking port.
type chatAdapter struct {
	ctx    context.Context
	engine *engine.Engine
	docs   []domain.Document
}

func (a *chatAdapter) Answer(query string) (string, error) {
	return a.engine.QueryDocuments(a.ctx, query, a.docs, "", "")
}

func runTUI(ctx context.Context, eng *engine.Engine, indexName, folder string, logger log.Logger) {
	adapter := &chatAdapter{ctx: ctx, engine: eng}
	summary := "Long-context mode."
	switch {
	case indexName != "":
		if err := eng.EnableIndexing(indexName); err != nil {
			logger.Fatal().Err(err).Str("index", indexName).Msg("index unavailable")
		}
		summary = fmt.Sprintf("Chatting against index %q.", indexName)
	case folder != "":
		docs, _, err := eng.LoadDocuments(folder)
		if err != nil {
			logger.Fatal().Err(err).Str("folder", folder).Msg("loading documents failed")
		}
		adapter.docs = docs
		summary = fmt.Sprintf("Long-context mode over %d document(s).", len(docs))
	default:
		logger.Fatal().Msg("TUI mode needs -index or -folder")
	}

	if _, err := tea.NewProgram(tui.New(adapter, summary)).Run(); err != nil {
		logger.Fatal().Err(err).Msg("TUI failed")
	}
}

// menuCLI drives the interactive menu loop on stdin.
type menuCLI struct {
	engine *engine.Engine
	in     *bufio.Reader
	ctx    context.Context
	docs   []domain.Document
}

func (c *menuCLI) prompt(label string) string {
	fmt.Print(label)
	line, err := c.in.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func (c *menuCLI) run() {
	for {
		choice := strings.ToLower(c.prompt("Choose an option: [create], [query], [noindex], [list], [delete], [deleteall], [showlog], [quit]: "))
		switch choice {
		case "create":
			c.createIndex()
		case "query":
			c.queryIndexed()
		case "noindex":
			c.queryNoIndex()
		case "list":
			c.listIndexes()
		case "delete":
			c.deleteIndex()
		case "deleteall":
			c.deleteAllIndexes()
		case "showlog":
			c.showChatLog()
		case "quit":
			if name := c.prompt("Enter a name to save the chat log (or press Enter to skip): "); name != "" {
				if path, err := c.engine.SessionLog().Save(name); err != nil {
					fmt.Printf("Error saving chat log: %v\n", err)
				} else {
					fmt.Printf("Chat log saved to %s\n", path)
				}
			}
			fmt.Println("Exiting the chatbot. Goodbye!")
			return
		default:
			fmt.Println("Invalid choice.")
		}
	}
}

func (c *menuCLI) createIndex() {
	folder := c.prompt("Enter the folder path containing documents: ")
	name := c.prompt("Enter the name for the new index: ")
	warnings, err := c.engine.IndexDocuments(c.ctx, folder, name)
	for _, w := range warnings {
		fmt.Println("Warning:", w)
	}
	if err != nil {
		fmt.Printf("Error creating index %q: %v\n", name, err)
		return
	}
	fmt.Printf("Index %q created successfully.\n", name)
}

func (c *menuCLI) queryIndexed() {
	if name := c.prompt("Enter the name of the chat log to load (or press Enter to skip): "); name != "" {
		if err := c.engine.SessionLog().Load(name); err != nil {
			fmt.Printf("Error loading chat log: %v\n", err)
		}
	}
	indexName := c.prompt("Index name: ")
	query := c.prompt("Your query: ")
	systemPrompt := c.prompt("System Prompt: ")
	userPrompt := c.prompt("User Prompt: ")

	response, err := c.engine.QueryIndexed(c.ctx, query, indexName, systemPrompt, userPrompt)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("### Response:\n\n%s\n", response)
}

func (c *menuCLI) queryNoIndex() {
	if folder := c.prompt("Enter doc folder path: "); folder != "" {
		docs, warnings, err := c.engine.LoadDocuments(folder)
		for _, w := range warnings {
			fmt.Println("Warning:", w)
		}
		if err != nil {
			fmt.Printf("Error loading documents: %v\n", err)
			return
		}
		c.docs = docs
		fmt.Println("Documents loaded successfully!")
	}
	query := c.prompt("Enter your query: ")
	if query == "" {
		return
	}
	response, err := c.engine.QueryDocuments(c.ctx, query, c.docs, "", "")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("### Response:\n\n%s\n", response)
}

func (c *menuCLI) showChatLog() {
	fmt.Print(formatChatLog(c.engine.SessionLog().Entries()))
}

// formatChatLog renders the session entries as user/bot pairs.
func formatChatLog(entries []chatlog.Entry) string {
	if len(entries) == 0 {
		return "Chat log is empty.\n"
	}
	var sb strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&sb, "user: %s\nbot:\n%s\n\n", entry.User, entry.Bot)
	}
	return sb.String()
}

func (c *menuCLI) listIndexes() {
	names, err := c.engine.ListIndexes()
	if err != nil {
		fmt.Printf("Error listing indexes: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Println("No indexes found.")
		return
	}
	for _, name := range names {
		fmt.Println(" -", name)
	}
}

func (c *menuCLI) deleteIndex() {
	name := c.prompt("Enter the name of the index to delete: ")
	deleted, err := c.engine.DeleteIndex(name)
	if err != nil {
		fmt.Printf("Error deleting index %q: %v\n", name, err)
		return
	}
	if !deleted {
		fmt.Printf("Index %q does not exist.\n", name)
		return
	}
	fmt.Printf("Index %q deleted.\n", name)
}

func (c *menuCLI) deleteAllIndexes() {
	count, err := c.engine.DeleteAllIndexes()
	if err != nil {
		fmt.Printf("Error deleting indexes: %v\n", err)
		return
	}
	fmt.Printf("Deleted %d index(es).\n", count)
}
