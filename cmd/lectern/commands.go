package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/lectern"
	"github.com/poiesic/lectern/config"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/reembed"
)

func initCommand(c *cli.Context) error {
	path := configPath(c)
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.Default()
	if dataDir := c.String("data-dir"); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func addCommand(c *cli.Context) error {
	path, err := requireArg(c, 0, "FILE")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := c.String("name")
	if name == "" {
		name = filepath.Base(path)
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	src, err := kb.AddSource(ctx, c.String("project"), name, filepath.Ext(path), f, nil)
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", path, err)
	}
	return finishAdd(ctx, c, kb, src)
}

func textCommand(c *cli.Context) error {
	text, err := argOrStdin(c)
	if err != nil {
		return err
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	src, err := kb.AddText(ctx, c.String("project"), c.String("name"), text, nil)
	if err != nil {
		return fmt.Errorf("failed to add text: %w", err)
	}
	return finishAdd(ctx, c, kb, src)
}

func linkCommand(c *cli.Context) error {
	rawURL, err := requireArg(c, 0, "URL")
	if err != nil {
		return err
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	src, err := kb.AddLink(ctx, c.String("project"), rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to add link: %w", err)
	}
	return finishAdd(ctx, c, kb, src)
}

func researchCommand(c *cli.Context) error {
	var text string
	if path := c.Args().First(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		text = string(data)
	} else {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return err
		}
		text = string(data)
	}

	query := c.String("query")
	name := c.String("name")
	if name == "" {
		name = query
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	src, err := kb.AddResearch(ctx, c.String("project"), name, query, text, nil)
	if err != nil {
		return fmt.Errorf("failed to add research: %w", err)
	}
	return finishAdd(ctx, c, kb, src)
}

// finishAdd reports the new source and, with --wait, its final status.
func finishAdd(ctx context.Context, c *cli.Context, kb *lectern.KnowledgeBase, src *core.Source) error {
	fmt.Fprintf(c.App.Writer, "Added %s (%s)\n", src.ID, src.Name)
	return waitAndReport(ctx, c, kb, src.ID)
}

func waitAndReport(ctx context.Context, c *cli.Context, kb *lectern.KnowledgeBase, sourceIDs ...string) error {
	if !c.Bool("wait") {
		return nil
	}
	if err := kb.Wait(ctx); err != nil {
		return err
	}
	for _, id := range sourceIDs {
		src, err := kb.Source(ctx, c.String("project"), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: %s\n", src.ID, describeStatus(src))
	}
	return nil
}

func listCommand(c *cli.Context) error {
	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	sources, err := kb.Sources(ctx, c.String("project"))
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintf(c.App.Writer, "No sources in project %s\n", c.String("project"))
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tSTATUS\tEMBEDDED\tACTIVE")
	for _, src := range sources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n",
			src.ID, truncate(src.Name, 40), src.Category, src.Status, src.IsEmbedded(), src.Active)
	}
	return w.Flush()
}

func showCommand(c *cli.Context) error {
	id, err := requireArg(c, 0, "SOURCE_ID")
	if err != nil {
		return err
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	src, err := kb.Source(ctx, c.String("project"), id)
	if err != nil {
		return err
	}
	printSource(c.App.Writer, src)

	tasks := kb.Tasks(src.ProjectID, src.ID)
	if len(tasks) > 0 {
		fmt.Fprintln(c.App.Writer, "\nTasks:")
		for _, t := range tasks {
			line := fmt.Sprintf("  %s %-16s %-9s %s", t.ID, t.Type, t.Status, t.SubmittedAt.Format(time.RFC3339))
			if t.Error != "" {
				line += "  " + t.Error
			}
			fmt.Fprintln(c.App.Writer, line)
		}
	}
	return nil
}

func printSource(w io.Writer, src *core.Source) {
	fmt.Fprintf(w, "ID:        %s\n", src.ID)
	fmt.Fprintf(w, "Name:      %s\n", src.Name)
	fmt.Fprintf(w, "Category:  %s (.%s)\n", src.Category, src.FileExtension)
	fmt.Fprintf(w, "Status:    %s\n", describeStatus(src))
	fmt.Fprintf(w, "Active:    %t\n", src.Active)
	fmt.Fprintf(w, "Created:   %s\n", src.CreatedAt.Format(time.RFC3339))

	info := src.ProcessingInfo
	if info.Processor != "" {
		fmt.Fprintf(w, "Processor: %s (attempt %d, %d pages, %d characters)\n",
			info.Processor, info.Attempt, info.PageCount, info.CharCount)
	}
	if emb := src.EmbeddingInfo; emb != nil {
		if emb.IsEmbedded {
			fmt.Fprintf(w, "Embedded:  %d chunks, %d tokens, model %s\n", emb.ChunkCount, emb.TokenCount, emb.Model)
		} else {
			fmt.Fprintf(w, "Embedded:  no (%s)\n", emb.Reason)
		}
	}
	if sum := src.SummaryInfo; sum != nil {
		if sum.Error != "" {
			fmt.Fprintf(w, "Summary:   failed: %s\n", sum.Error)
		} else {
			fmt.Fprintf(w, "Summary:   %s\n", sum.Summary)
			if len(sum.KeyTopics) > 0 {
				fmt.Fprintf(w, "Topics:    %s\n", strings.Join(sum.KeyTopics, ", "))
			}
		}
	}
	for _, k := range slices.Sorted(maps.Keys(src.Metadata)) {
		fmt.Fprintf(w, "Meta:      %s=%s\n", k, src.Metadata[k])
	}
}

func describeStatus(src *core.Source) string {
	if src.Status == core.StatusError && src.ProcessingInfo.Error != "" {
		return fmt.Sprintf("%s: %s", src.Status, src.ProcessingInfo.Error)
	}
	return string(src.Status)
}

func retryCommand(c *cli.Context) error {
	id, err := requireArg(c, 0, "SOURCE_ID")
	if err != nil {
		return err
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := kb.Retry(ctx, c.String("project"), id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Rescheduled %s\n", id)
	return waitAndReport(ctx, c, kb, id)
}

func cancelCommand(c *cli.Context) error {
	id, err := requireArg(c, 0, "SOURCE_ID")
	if err != nil {
		return err
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := kb.Cancel(ctx, c.String("project"), id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Cancelled %s\n", id)
	return nil
}

func deleteCommand(c *cli.Context) error {
	id, err := requireArg(c, 0, "SOURCE_ID")
	if err != nil {
		return err
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := kb.DeleteSource(ctx, c.String("project"), id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", id)
	return nil
}

func activateCommand(c *cli.Context) error {
	id, err := requireArg(c, 0, "SOURCE_ID")
	if err != nil {
		return err
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	src, err := kb.SetActive(ctx, c.String("project"), id, !c.Bool("off"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s active: %t\n", src.ID, src.Active)
	return nil
}

func resumeCommand(c *cli.Context) error {
	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := kb.Resume(ctx, c.String("project"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Rescheduled %d sources\n", n)
	if n == 0 || !c.Bool("wait") {
		return nil
	}
	return kb.Wait(ctx)
}

func searchCommand(c *cli.Context) error {
	id, err := requireArg(c, 0, "SOURCE_ID")
	if err != nil {
		return err
	}
	query := strings.Join(c.Args().Tail(), " ")

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := kb.Search(ctx, c.String("project"), id, query)
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, result.Context())
	return nil
}

func citeCommand(c *cli.Context) error {
	token, err := requireArg(c, 0, "TOKEN")
	if err != nil {
		return err
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	citation, err := kb.ResolveCitation(ctx, c.String("project"), token)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s, page %d [%s]\n\n%s\n", citation.SourceName, citation.PageNumber, citation.ChunkID, citation.Text)
	return nil
}

func reembedCommand(c *cli.Context) error {
	cfg := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		Concurrency:    c.Int("concurrency"),
		ReportInterval: c.Int("report-interval"),
		Force:          c.Bool("force"),
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than 0")
	}
	if cfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}

	ctx, kb, closeFn, err := openKnowledgeBase(c)
	if err != nil {
		return err
	}
	defer closeFn()

	result, err := kb.Reembed(ctx, c.String("project"), cfg, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d sources failed to re-embed", result.Failed)
	}
	return nil
}

func requireArg(c *cli.Context, i int, name string) (string, error) {
	arg := strings.TrimSpace(c.Args().Get(i))
	if arg == "" {
		return "", fmt.Errorf("%s argument is required", name)
	}
	return arg, nil
}

func argOrStdin(c *cli.Context) (string, error) {
	if c.Args().Present() {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	data, err := io.ReadAll(c.App.Reader)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("no text given")
	}
	return string(data), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
