package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/whippetlabs/whippet/pkg/model"
)

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Manage tenant content indexes",
		Commands: []*cli.Command{
			indexPutCommand(),
		},
	}
}

// indexDoc is the JSON input shape for one document; the embedding is
// computed at ingest time from title and body.
type indexDoc struct {
	CanonicalID string `json:"canonical_id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Category    string `json:"category,omitempty"`
	Body        string `json:"body,omitempty"`
}

func indexPutCommand() *cli.Command {
	var (
		cfg       config
		indexID   string
		inputPath string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "index-id",
			Usage:       "Content index to write to",
			Sources:     cli.EnvVars("WHIPPET_INDEX_ID"),
			Destination: &indexID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file with an array of documents",
			Sources:     cli.EnvVars("WHIPPET_INDEX_INPUT"),
			Destination: &inputPath,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, engineFlags(&cfg)...)

	return &cli.Command{
		Name:  "put",
		Usage: "Embed and upsert documents into a content index",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			data, err := os.ReadFile(inputPath)
			if err != nil {
				return goerr.Wrap(err, "failed to read input file", goerr.V("path", inputPath))
			}

			var docs []indexDoc
			if err := json.Unmarshal(data, &docs); err != nil {
				return goerr.Wrap(err, "failed to parse documents JSON")
			}

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			embedder, err := cfg.newEmbedder(ctx)
			if err != nil {
				return err
			}

			for _, doc := range docs {
				if doc.CanonicalID == "" || doc.Title == "" {
					return goerr.New("document canonical_id and title are required",
						goerr.V("doc", doc))
				}

				text := doc.Title
				if doc.Body != "" {
					text += "\n" + doc.Body
				}
				embedding, err := embedder.Embed(ctx, text)
				if err != nil {
					return goerr.Wrap(err, "failed to embed document",
						goerr.V("canonical_id", doc.CanonicalID))
				}

				if err := repo.PutContent(ctx, &model.ContentDoc{
					IndexID:     model.IndexID(indexID),
					CanonicalID: doc.CanonicalID,
					Title:       doc.Title,
					URL:         doc.URL,
					Category:    doc.Category,
					Embedding:   embedding,
					UpdatedAt:   time.Now(),
				}); err != nil {
					return goerr.Wrap(err, "failed to store document",
						goerr.V("canonical_id", doc.CanonicalID))
				}
			}

			fmt.Fprintf(c.Root().Writer, "Indexed %d documents into %s\n", len(docs), indexID)
			return nil
		},
	}
}
