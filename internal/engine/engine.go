package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"focusquest/internal/config"
	"focusquest/internal/domain"
	"focusquest/internal/events"
	"focusquest/internal/level"
	"focusquest/internal/repo"
	"focusquest/internal/stats"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID      string
	Name    string
	Icon    string
	JobType string
	ActorID string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if e.Config == nil {
		return domain.Task{}, errors.New("config not loaded")
	}
	if opts.Name == "" {
		return domain.Task{}, errors.New("name is required")
	}
	if opts.JobType == "" {
		return domain.Task{}, errors.New("job is required")
	}
	if !e.Config.HasJob(opts.JobType) {
		return domain.Task{}, fmt.Errorf("unknown job %s", opts.JobType)
	}
	n, err := e.Repo.CountTasks(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	if limit := e.Config.Award.TaskLimit; limit > 0 && n >= limit {
		return domain.Task{}, fmt.Errorf("task limit reached (%d); delete a task first", limit)
	}
	id := opts.ID
	now := e.now().UTC().Format(time.RFC3339)
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.Name+"|"+opts.JobType+"|"+now)).String()
	}
	t := domain.Task{
		ID:      id,
		Name:    opts.Name,
		Icon:    opts.Icon,
		JobType: opts.JobType,
		Level:   1,
		Experience: domain.Experience{
			Current: 0,
			Max:     level.ExpForLevel(1),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, opts.ActorID, events.EventPayload{"name": t.Name, "job": t.JobType}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions encapsulates allowed updates. Nil fields are untouched.
type TaskUpdateOptions struct {
	ID      string
	Name    *string
	Icon    *string
	JobType *string
	ActorID string
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	if e.Config == nil {
		return domain.Task{}, errors.New("config not loaded")
	}
	t, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return t, err
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return t, errors.New("name cannot be empty")
		}
		t.Name = *opts.Name
	}
	if opts.Icon != nil {
		t.Icon = *opts.Icon
	}
	if opts.JobType != nil {
		if !e.Config.HasJob(*opts.JobType) {
			return t, fmt.Errorf("unknown job %s", *opts.JobType)
		}
		t.JobType = *opts.JobType
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", "task", t.ID, opts.ActorID, events.EventPayload{"name": t.Name, "job": t.JobType}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// DeleteTask removes a task and purges its session log in one transaction.
func (e Engine) DeleteTask(ctx context.Context, id, actorID string) error {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	purged, err := e.Repo.DeleteSessionsForTask(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", "task", id, actorID, events.EventPayload{"name": t.Name, "sessions_purged": purged}); err != nil {
		return err
	}
	return tx.Commit()
}

// SessionResult is the outcome of completing a focus session.
type SessionResult struct {
	Session   domain.Session
	Task      domain.Task
	LeveledUp bool
	Message   string
}

// CompleteSessionOptions are parameters for recording a finished session.
// DurationSeconds defaults to the configured work length when zero.
type CompleteSessionOptions struct {
	TaskID          string
	DurationSeconds int
	Timestamp       int64
	ActorID         string
}

func (e Engine) CompleteSession(ctx context.Context, opts CompleteSessionOptions) (SessionResult, error) {
	if e.Config == nil {
		return SessionResult{}, errors.New("config not loaded")
	}
	t, err := e.Repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return SessionResult{}, err
	}
	duration := opts.DurationSeconds
	if duration <= 0 {
		duration = e.Config.Timer.WorkMinutes * 60
	}
	ts := opts.Timestamp
	if ts <= 0 {
		ts = e.now().UnixMilli()
	}
	points := e.Config.Award.SessionPoints
	s := domain.Session{
		ID:               uuid.New().String(),
		TaskID:           t.ID,
		TaskType:         t.Name,
		Timestamp:        ts,
		Duration:         duration,
		ExperiencePoints: points,
	}
	res := level.Award(t.Experience.Current, t.Experience.Max, t.Level, points)
	t.Experience.Current = res.CurrentExp
	t.Experience.Max = res.MaxExp
	t.Level = res.Level
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return SessionResult{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertSession(ctx, tx, s); err != nil {
		return SessionResult{}, err
	}
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return SessionResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "session.completed", "session", s.ID, opts.ActorID, events.EventPayload{
		"task_id":  t.ID,
		"duration": duration,
		"points":   points,
	}); err != nil {
		return SessionResult{}, err
	}
	if res.LeveledUp {
		if err := e.Events.Append(ctx, tx, "task.leveled_up", "task", t.ID, opts.ActorID, events.EventPayload{"level": t.Level}); err != nil {
			return SessionResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return SessionResult{}, err
	}
	out := SessionResult{Session: s, Task: t, LeveledUp: res.LeveledUp}
	if res.LeveledUp {
		out.Message = fmt.Sprintf("%s reached level %d!", t.Name, t.Level)
		if skill := newlyUnlockedSkill(e.Config, t); skill != nil {
			out.Message += fmt.Sprintf(" New skill unlocked: %s", skill.Name)
		}
	}
	return out, nil
}

func newlyUnlockedSkill(cfg *config.Config, t domain.Task) *config.SkillDef {
	for _, sk := range cfg.SkillsFor(t.JobType) {
		if sk.Level == t.Level {
			s := sk
			return &s
		}
	}
	return nil
}

// Stats aggregates the session log over a trailing day window. A storage
// failure is recoverable: the caller gets the zero shape plus the error and
// can still render an empty dashboard.
func (e Engine) Stats(ctx context.Context, windowDays int) (domain.Stats, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	sessions, err := e.Repo.AllSessions(ctx)
	if err != nil {
		log.Printf("stats: reading session log: %v", err)
		return stats.Zero(), fmt.Errorf("reading session log: %w", err)
	}
	st := stats.Compute(sessions, windowDays, e.now())
	tasks, err := e.Repo.ListTasks(ctx)
	if err != nil {
		log.Printf("stats: reading tasks: %v", err)
		return st, nil
	}
	st.TaskDistribution = stats.ApplyTaskNames(st.TaskDistribution, tasks)
	return st, nil
}

// SkillProgress reports a task's acquired skills and advance toward the next.
func (e Engine) SkillProgress(ctx context.Context, taskID string) (domain.SkillProgress, error) {
	if e.Config == nil {
		return domain.SkillProgress{}, errors.New("config not loaded")
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.SkillProgress{}, err
	}
	sp := domain.SkillProgress{
		TaskID:   t.ID,
		JobType:  t.JobType,
		Level:    t.Level,
		Acquired: []domain.Skill{},
	}
	for _, def := range e.Config.SkillsFor(t.JobType) {
		sk := domain.Skill{
			Name:        def.Name,
			Level:       def.Level,
			Description: def.Description,
			Acquired:    t.Level >= def.Level,
		}
		if sk.Acquired {
			sp.Acquired = append(sp.Acquired, sk)
		} else if sp.Next == nil {
			next := sk
			sp.Next = &next
		}
	}
	if sp.Next != nil {
		p := level.ProgressToward(t.Level, t.Experience.Current, t.Experience.Max, sp.Next.Level)
		sp.ProgressPercentage = p.Percentage
		sp.RemainingExp = p.RemainingExp
	} else {
		sp.ProgressPercentage = 100
	}
	return sp, nil
}

// ImportSettings validates and stores a replacement config.
func (e Engine) ImportSettings(ctx context.Context, cfg *config.Config, actorID string) error {
	if cfg == nil {
		return errors.New("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertSettingsTx(ctx, tx, cfg); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "settings.updated", "settings", "", actorID, events.EventPayload{
		"work_minutes":   cfg.Timer.WorkMinutes,
		"session_points": cfg.Award.SessionPoints,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
