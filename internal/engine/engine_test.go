package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"focusquest/internal/config"
	"focusquest/internal/db"
	"focusquest/internal/engine"
	"focusquest/internal/migrate"
	"focusquest/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.Repo.UpsertSettings(ctx, cfg); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func TestCreateTaskStartsAtLevelOne(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Name:    "Write thesis",
		JobType: "sage",
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Level != 1 || task.Experience.Current != 0 || task.Experience.Max != 100 {
		t.Fatalf("unexpected fresh task state: %+v", task)
	}
	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Name != "Write thesis" || got.JobType != "sage" {
		t.Fatalf("persisted task mismatch: %+v", got)
	}
}

func TestCreateTaskRejectsUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "x", JobType: "bard", ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected unknown job error")
	}
}

func TestTaskLimitEnforced(t *testing.T) {
	env := newTestEnv(t)
	for i, name := range []string{"one", "two", "three"} {
		if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: name, JobType: "warrior", ActorID: "tester"}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "four", JobType: "warrior", ActorID: "tester"})
	if err == nil || !strings.Contains(err.Error(), "task limit") {
		t.Fatalf("expected task limit error, got %v", err)
	}
}

func TestCompleteSessionAwardsPoints(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "Read", JobType: "mage", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.Engine.CompleteSession(env.Ctx, engine.CompleteSessionOptions{TaskID: task.ID, ActorID: "tester"})
	if err != nil {
		t.Fatalf("complete session: %v", err)
	}
	// 100 points against the 100-exp first level is an exact level-up
	if !res.LeveledUp || res.Task.Level != 2 {
		t.Fatalf("expected level 2, got %+v", res.Task)
	}
	if res.Task.Experience.Current != 0 || res.Task.Experience.Max != 150 {
		t.Fatalf("unexpected experience after level-up: %+v", res.Task.Experience)
	}
	if res.Session.TaskType != "Read" {
		t.Fatalf("session should snapshot task name, got %q", res.Session.TaskType)
	}
	if res.Session.Duration != 25*60 {
		t.Fatalf("expected configured work duration, got %d", res.Session.Duration)
	}
	if res.Message == "" {
		t.Fatalf("expected level-up message")
	}
}

func TestCompleteSessionPersistsTaskState(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "Run", JobType: "warrior", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := env.Engine.CompleteSession(env.Ctx, engine.CompleteSessionOptions{TaskID: task.ID, ActorID: "tester"}); err != nil {
			t.Fatalf("session %d: %v", i, err)
		}
	}
	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	// 300 total: level 1->2 at 100, then 200 toward the 150-exp second level
	if got.Level != 3 || got.Experience.Current != 50 || got.Experience.Max != 225 {
		t.Fatalf("unexpected state after three sessions: %+v", got)
	}
	sessions, err := env.Engine.Repo.ListSessions(env.Ctx, repo.SessionFilters{TaskID: task.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
}

func TestDeleteTaskPurgesSessions(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "Gone", JobType: "priest", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteSession(env.Ctx, engine.CompleteSessionOptions{TaskID: task.ID, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, "tester"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := env.Engine.Repo.GetTask(env.Ctx, task.ID); err != repo.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	sessions, err := env.Engine.Repo.AllSessions(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected purged session log, got %d rows", len(sessions))
	}
}

func TestUpdateTaskRename(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "Old", JobType: "mage", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	name := "New"
	job := "sage"
	updated, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Name: &name, JobType: &job, ActorID: "tester"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "New" || updated.JobType != "sage" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	// level and experience survive a rename
	if updated.Level != task.Level || updated.Experience != task.Experience {
		t.Fatalf("progression changed on rename: %+v", updated)
	}
}

func TestStatsOverSessions(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Now = time.Now
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "Daily", JobType: "warrior", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := env.Engine.CompleteSession(env.Ctx, engine.CompleteSessionOptions{TaskID: task.ID, ActorID: "tester"}); err != nil {
			t.Fatal(err)
		}
	}
	st, err := env.Engine.Stats(env.Ctx, 7)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(st.DailyStats) != 7 {
		t.Fatalf("expected 7 daily buckets, got %d", len(st.DailyStats))
	}
	today := st.DailyStats[len(st.DailyStats)-1]
	if today.SessionCount != 2 || today.ExperiencePoints != 200 {
		t.Fatalf("unexpected today bucket: %+v", today)
	}
	if st.StreakDays != 1 {
		t.Fatalf("expected streak 1, got %d", st.StreakDays)
	}
	if st.TotalExperience != 200 {
		t.Fatalf("expected total 200, got %d", st.TotalExperience)
	}
	if len(st.TaskDistribution) != 1 || st.TaskDistribution[0].TaskType != "Daily" {
		t.Fatalf("unexpected distribution: %+v", st.TaskDistribution)
	}
}

func TestStatsZeroShapeOnClosedStore(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.DB.Close()
	st, err := env.Engine.Stats(env.Ctx, 7)
	if err == nil {
		t.Fatalf("expected error from closed store")
	}
	if st.DailyStats == nil || st.TaskDistribution == nil {
		t.Fatalf("expected zero shape, got %+v", st)
	}
	if len(st.DailyStats) != 0 || st.StreakDays != 0 || st.TotalExperience != 0 {
		t.Fatalf("zero shape not empty: %+v", st)
	}
}

func TestSkillProgress(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "Train", JobType: "warrior", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	sp, err := env.Engine.SkillProgress(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("skill progress: %v", err)
	}
	if len(sp.Acquired) != 0 {
		t.Fatalf("fresh task should have no skills, got %+v", sp.Acquired)
	}
	if sp.Next == nil || sp.Next.Level != 3 {
		t.Fatalf("expected next skill at level 3, got %+v", sp.Next)
	}
	// grind to level 3: 100 + 150 exp, 100 points per session
	for i := 0; i < 3; i++ {
		if _, err := env.Engine.CompleteSession(env.Ctx, engine.CompleteSessionOptions{TaskID: task.ID, ActorID: "tester"}); err != nil {
			t.Fatal(err)
		}
	}
	sp, err = env.Engine.SkillProgress(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sp.Acquired) != 1 || sp.Acquired[0].Level != 3 {
		t.Fatalf("expected first skill acquired, got %+v", sp.Acquired)
	}
	if sp.Next == nil || sp.Next.Level != 5 {
		t.Fatalf("expected next skill at level 5, got %+v", sp.Next)
	}
}

func TestEventAppendOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Name: "Logged", JobType: "mage", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteSession(env.Ctx, engine.CompleteSessionOptions{TaskID: task.ID, ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT type FROM events`)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	types := map[string]bool{}
	for rows.Next() {
		var typ string
		if err := rows.Scan(&typ); err != nil {
			t.Fatal(err)
		}
		types[typ] = true
	}
	for _, want := range []string{"task.created", "session.completed", "task.leveled_up"} {
		if !types[want] {
			t.Fatalf("missing %s event, got %v", want, types)
		}
	}
}
