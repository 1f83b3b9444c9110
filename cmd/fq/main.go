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

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"focusquest/internal/app"
	"focusquest/internal/config"
	"focusquest/internal/db"
	"focusquest/internal/engine"
	"focusquest/internal/migrate"
	"focusquest/internal/repo"
	"focusquest/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fq",
	Short: "FocusQuest CLI",
	Long: `FocusQuest turns focus sessions into a role-playing grind.
- Workspace: your .focusquest directory with only the database; settings are stored in the DB and imported explicitly.
- Tasks: the things you work on. Each has a job (warrior, mage, priest, sage), a level, and experience.
- Sessions: one completed focus timer run. Each session awards experience to its task; enough experience levels the task up.
- Skills: jobs unlock skills at fixed levels as a task grows.
- Stats: daily rollups, task distribution, and your streak, with 'fq stats'.
- Event log: diary of changes, view with 'fq log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("FOCUSQUEST")
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
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("FOCUSQUEST_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("FOCUSQUEST_JWT_SECRET is required to mint tokens")
			}
			now := time.Now()
			claims := jwt.RegisteredClaims{
				Subject:   viper.GetString("actor-id"),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			}
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return err
			}
			fmt.Println(signed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are the quests you grind. Each carries a job, a level, and experience; completing focus sessions feeds them.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskGetCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskSkillsCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "task name")
	cmd.Flags().StringVar(&opts.Icon, "icon", "", "task icon")
	cmd.Flags().StringVar(&opts.JobType, "job", "", "job type (warrior, mage, priest, sage)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func taskListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Job", "Level", "Exp"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Name, t.JobType, t.Level, fmt.Sprintf("%d/%d", t.Experience.Current, t.Experience.Max)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func taskGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, id)
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
	var name, icon, job string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.TaskUpdateOptions{
				ID:      args[0],
				ActorID: viper.GetString("actor-id"),
			}
			if cmd.Flags().Changed("name") {
				opts.Name = &name
			}
			if cmd.Flags().Changed("icon") {
				opts.Icon = &icon
			}
			if cmd.Flags().Changed("job") {
				opts.JobType = &job
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
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&icon, "icon", "", "new icon")
	cmd.Flags().StringVar(&job, "job", "", "new job type")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task and its session log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, id, viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func taskSkillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills <id>",
		Short: "Show a task's skill progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sp, err := e.SkillProgress(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sp)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Skill", "Level", "Acquired"})
				for _, sk := range sp.Acquired {
					tw.AppendRow(table.Row{sk.Name, sk.Level, "yes"})
				}
				if sp.Next != nil {
					tw.AppendRow(table.Row{sp.Next.Name, sp.Next.Level, fmt.Sprintf("%.0f%% (need %d exp)", sp.ProgressPercentage, sp.RemainingExp)})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func sessionCmd() *cobra.Command {
	session := &cobra.Command{
		Use:   "session",
		Short: "Record and browse focus sessions",
	}
	session.AddCommand(sessionCompleteCmd())
	session.AddCommand(sessionListCmd())
	session.AddCommand(sessionRunCmd())
	return session
}

func sessionCompleteCmd() *cobra.Command {
	var taskID string
	var duration int
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Record a completed focus session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.CompleteSession(ctx, engine.CompleteSessionOptions{
					TaskID:          taskID,
					DurationSeconds: duration,
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("+%d exp for %s (level %d, %d/%d)\n",
					res.Session.ExperiencePoints, res.Task.Name, res.Task.Level,
					res.Task.Experience.Current, res.Task.Experience.Max)
				if res.Message != "" {
					fmt.Println(res.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().IntVar(&duration, "duration", 0, "session duration in seconds (default: configured work length)")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

// sessionRunCmd runs a live work timer and records the session when it ends.
func sessionRunCmd() *cobra.Command {
	var taskID string
	var minutes int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a focus timer, then record the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, taskID)
				if err != nil {
					return err
				}
				if minutes <= 0 {
					minutes = e.Config.Timer.WorkMinutes
				}
				total := int64(minutes * 60)
				pw := progress.NewWriter()
				pw.SetOutputWriter(os.Stdout)
				pw.SetUpdateFrequency(time.Second)
				go pw.Render()
				tracker := &progress.Tracker{Message: fmt.Sprintf("Focusing on %s", t.Name), Total: total, Units: progress.UnitsDefault}
				pw.AppendTracker(tracker)
				ticker := time.NewTicker(time.Second)
				defer ticker.Stop()
				for elapsed := int64(0); elapsed < total; {
					select {
					case <-ctx.Done():
						pw.Stop()
						return ctx.Err()
					case <-ticker.C:
						elapsed++
						tracker.SetValue(elapsed)
					}
				}
				tracker.MarkAsDone()
				pw.Stop()
				res, err := e.CompleteSession(ctx, engine.CompleteSessionOptions{
					TaskID:          taskID,
					DurationSeconds: int(total),
					ActorID:         viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				fmt.Printf("+%d exp for %s (level %d, %d/%d)\n",
					res.Session.ExperiencePoints, res.Task.Name, res.Task.Level,
					res.Task.Experience.Current, res.Task.Experience.Max)
				if res.Message != "" {
					fmt.Println(res.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "timer length in minutes (default: configured work length)")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func sessionListCmd() *cobra.Command {
	var taskID string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sessions, err := e.Repo.ListSessions(ctx, repo.SessionFilters{TaskID: taskID, Limit: limit})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sessions)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Task", "Duration", "Exp"})
				for _, s := range sessions {
					when := time.UnixMilli(s.Timestamp).Local().Format("2006-01-02 15:04")
					tw.AppendRow(table.Row{when, s.TaskType, fmt.Sprintf("%dm", s.Duration/60), s.ExperiencePoints})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&taskID, "task", "", "filter by task id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max sessions")
	return cmd
}

func statsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show session statistics",
		Long:  "Daily rollups over a trailing window plus your streak, total experience, and which tasks got the sessions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				st, err := e.Stats(ctx, days)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Date", "Sessions", "Minutes", "Exp"})
				for _, d := range st.DailyStats {
					tw.AppendRow(table.Row{d.Date, d.SessionCount, d.TotalDuration / 60, d.ExperiencePoints})
				}
				tw.Render()
				fmt.Printf("Streak: %d day(s)  Total exp: %d\n", st.StreakDays, st.TotalExperience)
				if len(st.TaskDistribution) > 0 {
					fmt.Println("Sessions by task:")
					for _, d := range st.TaskDistribution {
						fmt.Printf("  %s: %d\n", d.TaskType, d.SessionCount)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "window size in days")
	return cmd
}

func settingsCmd() *cobra.Command {
	settings := &cobra.Command{
		Use:   "settings",
		Short: "Manage settings",
	}
	settings.AddCommand(settingsShowCmd())
	settings.AddCommand(settingsImportCmd())
	settings.AddCommand(settingsInitCmd())
	return settings
}

func settingsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show settings stored in DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func settingsImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import settings from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromFile(filePath)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ImportSettings(ctx, cfg, viper.GetString("actor-id")); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML settings")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func settingsInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Print the default settings YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault())
			return nil
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Browse the event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			cfg, err := app.ResolveConfig(cmd.Context(), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("FOCUSQUEST_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("FOCUSQUEST_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving FocusQuest API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
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
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	cfg, err := app.ResolveConfig(ctx, r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
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
