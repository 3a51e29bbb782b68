package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/docqa-ai/cli/config"
	"github.com/docqa-ai/cli/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.DefaultConfig())

	app := &cli.Command{
		Name:  "docqa",
		Usage: "Grounded question answering over your own documents",
		Commands: []*cli.Command{
			{
				Name:  "chat",
				Usage: "Conversation commands",
				Commands: []*cli.Command{
					{
						Name:  "new",
						Usage: "Start a new conversation",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "user", Usage: "User id to associate feedback with"},
						},
						Action: chatNewAction,
					},
					{
						Name:      "ask",
						Usage:     "Ask a question grounded in selected documents",
						ArgsUsage: "<question>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true},
							&cli.StringSliceFlag{Name: "doc", Aliases: []string{"d"}, Usage: "Document to ground the answer in (repeatable)"},
						},
						Action: chatAskAction,
					},
					{
						Name:  "history",
						Usage: "Show a conversation's messages",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true},
						},
						Action: chatHistoryAction,
					},
					{
						Name:   "list",
						Usage:  "List conversations",
						Action: chatListAction,
					},
					{
						Name:  "docs",
						Usage: "List documents ingested into a conversation",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true},
						},
						Action: chatDocsAction,
					},
					{
						Name:  "delete",
						Usage: "Delete a conversation and its vector buckets",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true},
						},
						Action: chatDeleteAction,
					},
				},
			},
			{
				Name:  "ingest",
				Usage: "Ingestion commands",
				Commands: []*cli.Command{
					{
						Name:      "file",
						Usage:     "Ingest local files",
						ArgsUsage: "<path>...",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true},
						},
						Action: ingestFileAction,
					},
					{
						Name:      "url",
						Usage:     "Ingest a web page",
						ArgsUsage: "<url>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true},
						},
						Action: ingestURLAction,
					},
					{
						Name:      "topic",
						Usage:     "Search the web for a topic and ingest the top results",
						ArgsUsage: "<topic>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true},
						},
						Action: ingestTopicAction,
					},
				},
			},
			{
				Name:  "feedback",
				Usage: "Rate an AI answer from 1 to 5",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "conversation", Aliases: []string{"c"}, Required: true},
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Required: true},
					&cli.IntFlag{Name: "rating", Aliases: []string{"r"}, Required: true},
				},
				Action: feedbackAction,
			},
			{
				Name:  "migrate",
				Usage: "Apply the conversation store schema",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Value: "migrations/00001_init_schema.up.sql"},
				},
				Action: migrateAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// parseConversationID parses the --conversation flag
func parseConversationID(cmd *cli.Command) (uuid.UUID, error) {
	id, err := uuid.Parse(cmd.String("conversation"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid conversation id: %w", err)
	}
	return id, nil
}

func chatNewAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	var userID *string
	if user := cmd.String("user"); user != "" {
		userID = &user
	}

	conv, err := app.QA.NewConversation(ctx, userID)
	if err != nil {
		return err
	}
	fmt.Println(conv.ID)
	return nil
}

func chatAskAction(ctx context.Context, cmd *cli.Command) error {
	question := cmd.Args().First()
	if question == "" {
		return errors.New("question is required")
	}
	convID, err := parseConversationID(cmd)
	if err != nil {
		return err
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	answer, err := app.QA.Ask(ctx, convID, question, cmd.StringSlice("doc"))
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func chatHistoryAction(ctx context.Context, cmd *cli.Command) error {
	convID, err := parseConversationID(cmd)
	if err != nil {
		return err
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	msgs, err := app.QA.History(ctx, convID)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		fmt.Printf("[%s] %s: %s\n", msg.ID, msg.Role, msg.Content)
	}
	return nil
}

func chatListAction(ctx context.Context, cmd *cli.Command) error {
	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	convs, err := app.QA.ListConversations(ctx)
	if err != nil {
		return err
	}
	for _, conv := range convs {
		title := "(untitled)"
		if conv.Title != nil {
			title = *conv.Title
		}
		fmt.Printf("%s  %s  %s\n", conv.ID, conv.UpdatedAt.Format("2006-01-02 15:04"), title)
	}
	return nil
}

func chatDocsAction(ctx context.Context, cmd *cli.Command) error {
	convID, err := parseConversationID(cmd)
	if err != nil {
		return err
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	names, err := app.QA.ListDocuments(ctx, convID)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func chatDeleteAction(ctx context.Context, cmd *cli.Command) error {
	convID, err := parseConversationID(cmd)
	if err != nil {
		return err
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.QA.DeleteConversation(ctx, convID); err != nil {
		return err
	}
	fmt.Println("deleted")
	return nil
}

func ingestFileAction(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one file path is required")
	}
	convID, err := parseConversationID(cmd)
	if err != nil {
		return err
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	// One bad file must not abort the rest
	var failures int
	for _, path := range paths {
		count, err := app.Processor.IngestFile(ctx, convID, path)
		if err != nil {
			app.Logger.Warn("ingestion failed", "path", path, "error", err)
			failures++
			continue
		}
		fmt.Printf("%s: %d chunks\n", path, count)
	}
	if failures == len(paths) {
		return errors.New("all sources failed to ingest")
	}
	return nil
}

func ingestURLAction(ctx context.Context, cmd *cli.Command) error {
	url := cmd.Args().First()
	if url == "" {
		return errors.New("url is required")
	}
	convID, err := parseConversationID(cmd)
	if err != nil {
		return err
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	count, err := app.Processor.IngestURL(ctx, convID, url)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d chunks\n", url, count)
	return nil
}

func ingestTopicAction(ctx context.Context, cmd *cli.Command) error {
	topic := cmd.Args().First()
	if topic == "" {
		return errors.New("topic is required")
	}
	convID, err := parseConversationID(cmd)
	if err != nil {
		return err
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	count, err := app.Processor.IngestTopic(ctx, convID, topic, app.Config.Search.MaxResults)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d chunks\n", topic, count)
	return nil
}

func feedbackAction(ctx context.Context, cmd *cli.Command) error {
	convID, err := parseConversationID(cmd)
	if err != nil {
		return err
	}
	msgID, err := uuid.Parse(cmd.String("message"))
	if err != nil {
		return fmt.Errorf("invalid message id: %w", err)
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.QA.SubmitFeedback(ctx, convID, msgID, cmd.Int("rating")); err != nil {
		return err
	}
	fmt.Println("feedback recorded")
	return nil
}

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	schema, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if _, err := database.Pool().Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply migration: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}
