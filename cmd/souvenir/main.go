package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	souvenir "github.com/tmercier/souvenir"
	"github.com/tmercier/souvenir/internal/export"
	"github.com/tmercier/souvenir/internal/output"
	"github.com/tmercier/souvenir/internal/storage"
)

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "souvenir",
		Short: "Personal clipboard archive with AI tagging and web capture",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "human", "output format: json, text, human")

	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(captureCmd())
	rootCmd.AddCommand(attachCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(detachCmd())
	rootCmd.AddCommand(laterCmd())
	rootCmd.AddCommand(enrichCmd())
	rootCmd.AddCommand(tagsCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = storage.DefaultConfig()
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg = storage.DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

func openEngine() (*souvenir.Engine, error) {
	engine, err := souvenir.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return engine, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func captureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capture <url>",
		Short: "Fetch a web page and save its readable content as a clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			clip, err := engine.CaptureArticle(ctx, args[0])
			if err != nil {
				return err
			}

			formatter := output.NewFormatter(output.Format(outputFormat))
			attachments, _ := engine.Attachments(clip.ID)
			return formatter.OutputClip(clip, attachments)
		},
	}
}

func attachCmd() *cobra.Command {
	var clipID int64
	cmd := &cobra.Command{
		Use:   "attach <file>",
		Short: "Store a file as an attachment; creates a clip unless --clip is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			var att *souvenir.Attachment
			if clipID > 0 {
				att, err = engine.AttachFile(clipID, args[0])
			} else {
				var clip *souvenir.Clip
				clip, att, err = engine.CaptureFile(args[0])
				if err == nil {
					clipID = clip.ID
				}
			}
			if err != nil {
				return err
			}

			// Let the indexing job finish before the engine shuts down.
			select {
			case c := <-engine.Completions():
				c.Deliver()
			case <-time.After(30 * time.Second):
			}

			fmt.Printf("Attached %s to clip %d (attachment %d, %s, %d bytes)\n",
				att.Filename, clipID, att.ID, att.Mime, att.Size)
			return nil
		},
	}
	cmd.Flags().Int64Var(&clipID, "clip", 0, "existing clip to attach to")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		tag, category, clipType string
		readLater               bool
		limit                   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clips, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			opts := souvenir.ListOptions{
				Tag:      tag,
				Category: category,
				Type:     clipType,
				Limit:    limit,
			}
			if cmd.Flags().Changed("read-later") {
				opts.ReadLater = &readLater
			}

			clips, err := engine.List(opts)
			if err != nil {
				return fmt.Errorf("failed to list clips: %w", err)
			}
			return output.NewFormatter(output.Format(outputFormat)).OutputClipList(clips)
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "filter by tag")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&clipType, "type", "", "filter by clip type (note, web, file)")
	cmd.Flags().BoolVar(&readLater, "read-later", false, "filter by read-later flag")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of clips to show")
	return cmd
}

func searchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search clips by title, text, and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			clips, err := engine.List(souvenir.ListOptions{Text: args[0], Limit: limit})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return output.NewFormatter(output.Format(outputFormat)).OutputClipList(clips)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum number of results")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <clip-id>",
		Short: "Show one clip in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			clip, err := engine.Clip(id)
			if err != nil {
				return err
			}
			if clip == nil {
				return fmt.Errorf("no clip with id %d", id)
			}
			attachments, err := engine.Attachments(id)
			if err != nil {
				return err
			}
			return output.NewFormatter(output.Format(outputFormat)).OutputClip(clip, attachments)
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <clip-id>",
		Short: "Delete a clip and its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Delete(id); err != nil {
				return fmt.Errorf("failed to delete clip: %w", err)
			}
			fmt.Printf("Deleted clip %d\n", id)
			return nil
		},
	}
}

func laterCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "later <clip-id>",
		Short: "Mark a clip for reading later",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			flag := !clear
			if err := engine.Update(id, storage.ClipUpdate{ReadLater: &flag}); err != nil {
				return fmt.Errorf("failed to update clip: %w", err)
			}
			if clear {
				fmt.Printf("Cleared read-later on clip %d\n", id)
			} else {
				fmt.Printf("Marked clip %d for later\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the read-later flag instead of setting it")
	return cmd
}

func enrichCmd() *cobra.Command {
	var (
		all                     bool
		limit                   int
		tags, title, categories bool
		suggest                 bool
	)
	cmd := &cobra.Command{
		Use:   "enrich [clip-id]",
		Short: "Run AI tagging and titling on a clip, or --all untagged clips",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := context.Background()
			formatter := output.NewFormatter(output.Format(outputFormat))

			if all {
				// --all --categories fills in missing categories; any other
				// combination runs the tag and title passes.
				var n int
				if categories && !tags && !title {
					n, err = engine.EnrichUncategorized(ctx, limit)
				} else {
					n, err = engine.EnrichUntagged(ctx, limit)
				}
				if err != nil {
					return err
				}
				fmt.Printf("Enriched %d clips\n", n)
				return nil
			}

			if len(args) != 1 {
				return fmt.Errorf("clip id required unless --all is set")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if suggest {
				suggestions, err := engine.SuggestCategories(ctx, id, 5)
				if err != nil {
					return err
				}
				if len(suggestions) == 0 {
					fmt.Println("No new categories to suggest")
					return nil
				}
				fmt.Printf("Suggested categories: %s\n", strings.Join(suggestions, ", "))
				return nil
			}

			// No pass flags means all passes.
			opts := souvenir.EnrichOptions{Tags: tags, Title: title, Categories: categories}
			if !tags && !title && !categories {
				opts = souvenir.EnrichOptions{Tags: true, Title: true, Categories: true}
			}

			result, err := engine.Enrich(ctx, id, opts)
			if err != nil {
				return err
			}
			if result == nil {
				return fmt.Errorf("no clip with id %d", id)
			}
			return formatter.OutputEnrichResult(result)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "enrich every untagged clip")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum clips to enrich with --all")
	cmd.Flags().BoolVar(&tags, "tags", false, "generate tags")
	cmd.Flags().BoolVar(&title, "title", false, "generate a title if the clip has none")
	cmd.Flags().BoolVar(&categories, "categories", false, "pick categories from the configured set")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "suggest new categories for a clip without writing anything")
	return cmd
}

func tagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "Show tag frequencies across the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			counts, err := engine.TagCounts()
			if err != nil {
				return err
			}
			return output.NewFormatter(output.Format(outputFormat)).OutputCounts(counts)
		},
	}
}

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show category frequencies across the archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			counts, err := engine.CategoryCounts()
			if err != nil {
				return err
			}
			return output.NewFormatter(output.Format(outputFormat)).OutputCounts(counts)
		},
	}
}

func detachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <attachment-id>",
		Short: "Delete a single attachment, keeping its clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.DeleteAttachment(id); err != nil {
				return fmt.Errorf("failed to delete attachment: %w", err)
			}
			fmt.Printf("Deleted attachment %d\n", id)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var format, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the archive as markdown, html, or json",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			exporter := export.NewExporter(engine.Store(), dir, cfg.Export.DatePrefix)
			switch format {
			case "md", "markdown":
				n, err := exporter.Markdown()
				if err != nil {
					return err
				}
				fmt.Printf("Exported %d clips to %s\n", n, dir)
			case "html":
				n, err := exporter.HTML()
				if err != nil {
					return err
				}
				fmt.Printf("Exported %d clips to %s\n", n, dir)
			case "json":
				path := filepath.Join(dir, "souvenir.json")
				if err := os.MkdirAll(dir, 0755); err != nil {
					return fmt.Errorf("failed to create export directory: %w", err)
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", path, err)
				}
				defer f.Close()
				if err := exporter.JSON(f); err != nil {
					return err
				}
				fmt.Printf("Exported archive to %s\n", path)
			default:
				return fmt.Errorf("unknown export format %q (md, html, json)", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "export-format", "md", "export format: md, html, json")
	cmd.Flags().StringVarP(&dir, "dir", "d", "./export", "target directory")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dump.json>",
		Short: "Import clips and tasks from a JSON dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open dump: %w", err)
			}
			defer f.Close()

			n, err := export.Import(engine.Store(), f)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d clips from %s\n", n, args[0])
			return nil
		},
	}
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks and reminders",
	}
	cmd.AddCommand(taskAddCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskDoneCmd())
	cmd.AddCommand(taskDeleteCmd())
	return cmd
}

func taskAddCmd() *cobra.Command {
	var (
		note, priority, due string
		clipID              int64
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task, optionally with a due time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			var dueAt *time.Time
			if due != "" {
				t, err := parseDue(due)
				if err != nil {
					return err
				}
				dueAt = &t
			}
			var clip *int64
			if clipID > 0 {
				clip = &clipID
			}

			task, err := engine.AddTask(args[0], note, priority, dueAt, clip)
			if err != nil {
				return err
			}
			fmt.Printf("Created task %d\n", task.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "priority: low, medium, high")
	cmd.Flags().StringVar(&due, "due", "", `due time ("2006-01-02 15:04" or RFC3339)`)
	cmd.Flags().Int64Var(&clipID, "clip", 0, "clip to link the task to")
	return cmd
}

func parseDue(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due time %q", s)
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks, soonest due first",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			tasks, err := engine.Tasks()
			if err != nil {
				return err
			}
			return output.NewFormatter(output.Format(outputFormat)).OutputTaskList(tasks)
		},
	}
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <task-id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.CompleteTask(id); err != nil {
				return err
			}
			fmt.Printf("Marked task %d done\n", id)
			return nil
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			engine, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.DeleteTask(id); err != nil {
				return err
			}
			fmt.Printf("Deleted task %d\n", id)
			return nil
		},
	}
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = "./config/config.yaml"
			}

			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			data, err := yaml.Marshal(storage.DefaultConfig())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
