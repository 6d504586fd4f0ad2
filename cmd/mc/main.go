package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"missionctl/internal/config"
	"missionctl/internal/domain"
	"missionctl/internal/engine"
	"missionctl/internal/logging"
	"missionctl/internal/server"
	"missionctl/internal/store"
	missionsdk "missionctl/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "mc",
	Short: "Mission Control CLI",
	Long: `Mission Control is the team dashboard: tasks, shared tasks, notes,
outputs, projects, reports and a searchable activity log, all stored as plain
JSON files in the workspace. Run 'mc serve' to expose the same data over HTTP.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("MISSIONCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(outputCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- tasks ---

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks flow pending -> in-progress -> completed. Use --shared to work on the team-wide list instead of your personal one.",
	}
	task.PersistentFlags().Bool("shared", false, "use the shared task list")
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskScope(cmd *cobra.Command) domain.TaskScope {
	shared, _ := cmd.Flags().GetBool("shared")
	if shared {
		return domain.ScopeShared
	}
	return domain.ScopePersonal
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Scope = taskScope(cmd)
			opts.Actor = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (optional, random UUID if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (pending, in-progress, completed)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority (low, medium, high)")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f engine.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := taskScope(cmd)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.ListTasks(ctx, scope, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Owner", "Due"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, t.Owner, t.DueDate})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&f.Owner, "owner", "", "owner filter")
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := taskScope(cmd)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, scope, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, status, priority, owner, due string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				Scope: taskScope(cmd),
				ID:    args[0],
				Actor: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if cmd.Flags().Changed("owner") {
				opts.Owner = &owner
			}
			if cmd.Flags().Changed("due") {
				opts.DueDate = &due
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status (pending, in-progress, completed)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (low, medium, high)")
	cmd.Flags().StringVar(&owner, "owner", "", "owner")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	return cmd
}

func taskDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Complete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := taskScope(cmd)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CompleteTask(ctx, scope, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := taskScope(cmd)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, scope, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

// --- notes ---

func noteCmd() *cobra.Command {
	note := &cobra.Command{
		Use:   "note",
		Short: "Manage shared notes",
	}
	note.AddCommand(noteAddCmd())
	note.AddCommand(noteListCmd())
	note.AddCommand(notePinCmd())
	note.AddCommand(noteDeleteCmd())
	return note
}

func noteAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.CreateNote(ctx, engine.NoteCreateOptions{
					Author:  viper.GetString("actor-id"),
					Content: args[0],
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	return cmd
}

func noteListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes (pinned first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				notes, err := e.ListNotes(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(notes)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Author", "Pinned", "Content"})
				for _, n := range notes {
					tw.AppendRow(table.Row{n.ID, n.Author, n.Pinned, n.Content})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func notePinCmd() *cobra.Command {
	var unpin bool
	cmd := &cobra.Command{
		Use:   "pin <id>",
		Short: "Pin a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pinned := !unpin
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n, err := e.UpdateNote(ctx, engine.NoteUpdateOptions{
					ID:     args[0],
					Pinned: &pinned,
					Actor:  viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(n)
			})
		},
	}
	cmd.Flags().BoolVar(&unpin, "unpin", false, "unpin instead")
	return cmd
}

func noteDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteNote(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

// --- activity log ---

func activityCmd() *cobra.Command {
	act := &cobra.Command{
		Use:   "activity",
		Short: "Activity log",
		Long:  "The diary of everything that happened: task changes, notes, outputs and anything posted by tools.",
	}
	act.AddCommand(activityLogCmd())
	act.AddCommand(activityTailCmd())
	return act
}

func activityLogCmd() *cobra.Command {
	var typ, action, details string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Append an activity entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.LogActivity(ctx, typ, action, details, viper.GetString("actor-id"), nil)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "activity type")
	cmd.Flags().StringVar(&action, "action", "", "action")
	cmd.Flags().StringVar(&details, "details", "", "details")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func activityTailCmd() *cobra.Command {
	var n int
	var typ, action string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListActivities(ctx, engine.ActivityFilters{Type: typ, Action: action, Limit: n})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Timestamp", "Type", "Action", "Actor", "Details"})
				for _, a := range items {
					tw.AppendRow(table.Row{a.Timestamp, a.Type, a.Action, a.Actor, a.Details})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&typ, "type", "", "type filter")
	cmd.Flags().StringVar(&action, "action", "", "action filter")
	return cmd
}

// --- outputs ---

func outputCmd() *cobra.Command {
	out := &cobra.Command{
		Use:   "output",
		Short: "Manage outputs",
		Long:  "Outputs are finished deliverables: documents, memory snapshots, repos and slide decks.",
	}
	out.AddCommand(outputPostCmd())
	out.AddCommand(outputListCmd())
	out.AddCommand(outputGetCmd())
	out.AddCommand(outputDeleteCmd())
	return out
}

func outputPostCmd() *cobra.Command {
	var opts engine.OutputCreateOptions
	var tags []string
	var serverURL, apiKey string
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Record an output",
		Long:  "Records an output in the workspace, or posts it to a running Mission Control server when --server is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Tags = tags
			if opts.Owner == "" {
				opts.Owner = viper.GetString("actor-id")
			}
			if serverURL != "" {
				client := missionsdk.New(serverURL)
				client.APIKey = apiKey
				o, err := client.CreateOutput(cmd.Context(), missionsdk.CreateOutputRequest{
					Title:   opts.Title,
					Type:    opts.Type,
					URL:     opts.URL,
					Content: opts.Content,
					Owner:   opts.Owner,
					Tags:    opts.Tags,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.CreateOutput(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "output id (optional)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Type, "type", "", "type (document, memory, repo, slides)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "link to the artifact")
	cmd.Flags().StringVar(&opts.Content, "content", "", "inline content")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "owner")
	cmd.Flags().StringArrayVar(&tags, "tag", []string{}, "tag (repeatable)")
	cmd.Flags().StringVar(&serverURL, "server", "", "post to this Mission Control server instead of the local workspace")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for --server")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func outputListCmd() *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				outputs, err := e.ListOutputs(ctx, typ)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(outputs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "Owner", "URL"})
				for _, o := range outputs {
					tw.AppendRow(table.Row{o.ID, o.Title, o.Type, o.Owner, o.URL})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "type filter")
	return cmd
}

func outputGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.GetOutput(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func outputDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteOutput(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

// --- projects ---

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectUpdateCmd())
	prj.AddCommand(projectDeleteCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Actor = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (optional)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status (active, paused, archived)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProjects(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectUpdateCmd() *cobra.Command {
	var name, description, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ProjectUpdateOptions{
				ID:    args[0],
				Actor: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("status") {
				opts.Status = &status
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status (active, paused, archived)")
	return cmd
}

func projectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteProject(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

// --- reports, search, summary ---

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Workspace reports"}
	rep.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List report files (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reports, err := e.ListReports(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(reports)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Name", "Size", "Modified"})
				for _, r := range reports {
					tw.AppendRow(table.Row{r.Name, r.Size, r.ModifiedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	return rep
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search activities and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				results, err := e.Search(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(results)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Score", "Type", "Item"})
				for _, r := range results {
					b, _ := json.Marshal(r.Item)
					tw.AppendRow(table.Row{r.Score, r.Type, string(b)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the dashboard summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sum, err := e.Summarize(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sum)
				}
				fmt.Printf("Team: %s\n", sum.Team)
				fmt.Println("Tasks:")
				for status, c := range sum.TaskCounts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Println("Shared tasks:")
				for status, c := range sum.SharedTaskCounts {
					fmt.Printf("  %s: %d\n", status, c)
				}
				fmt.Printf("Notes: %d  Outputs: %d  Projects: %d\n", sum.Notes, sum.Outputs, sum.Projects)
				fmt.Println("Recent activity:")
				for _, a := range sum.RecentActivity {
					fmt.Printf("  %s %s/%s %s\n", a.Timestamp, a.Type, a.Action, a.Details)
				}
				return nil
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			st := store.New(cfg.Storage.DataDir, cfg.Storage.ReportsDir, logger)
			if err := st.EnsureWorkspace(); err != nil {
				return err
			}
			defer st.Close()
			if err := st.Watch(); err != nil {
				logger.Warn().Err(err).Msg("file watch unavailable, cache disabled refresh")
			}
			e := engine.New(st, cfg, logger)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: cfg.Server.BasePath,
				Auth:     server.AuthConfig{JWTSecret: os.Getenv("MISSIONCTL_JWT_SECRET")},
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info().Str("addr", cfg.Server.Addr).Str("base_path", cfg.Server.BasePath).Msg("serving Mission Control API")
			fmt.Printf("Serving Mission Control API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	st := store.New(cfg.Storage.DataDir, cfg.Storage.ReportsDir, logger)
	if err := st.EnsureWorkspace(); err != nil {
		return err
	}
	defer st.Close()
	e := engine.New(st, cfg, logger)
	return fn(ctx, e)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
