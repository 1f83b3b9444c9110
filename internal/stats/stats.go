// Package stats aggregates the session log into time-windowed summaries.
package stats

import (
	"sort"
	"time"

	"focusquest/internal/domain"
)

const dateLayout = "2006-01-02"

// streak walking is bounded regardless of log size
const maxStreakDays = 365

// Compute summarizes sessions over a trailing window of windowDays calendar
// days ending on now's date, in local time. Daily rollups cover every day of
// the window (zero-filled) in ascending order. The streak is independent of
// the window: it walks backward from today over the full session log.
func Compute(sessions []domain.Session, windowDays int, now time.Time) domain.Stats {
	stats := Zero()
	if windowDays <= 0 {
		return stats
	}

	loc := now.Location()
	windowStart := startOfDay(now.AddDate(0, 0, -(windowDays - 1)))
	windowEnd := endOfDay(now)

	var filtered []domain.Session
	byDate := map[string][]domain.Session{}
	allDates := map[string]bool{}
	for _, s := range sessions {
		ts := time.UnixMilli(s.Timestamp).In(loc)
		allDates[ts.Format(dateLayout)] = true
		if ts.Before(windowStart) || ts.After(windowEnd) {
			continue
		}
		key := ts.Format(dateLayout)
		filtered = append(filtered, s)
		byDate[key] = append(byDate[key], s)
	}

	stats.DailyStats = make([]domain.DailyStat, 0, windowDays)
	for i := 0; i < windowDays; i++ {
		day := windowStart.AddDate(0, 0, i)
		key := day.Format(dateLayout)
		daily := domain.DailyStat{Date: key}
		for _, s := range byDate[key] {
			daily.SessionCount++
			daily.TotalDuration += s.Duration
			daily.ExperiencePoints += s.ExperiencePoints
		}
		stats.DailyStats = append(stats.DailyStats, daily)
	}

	for day := startOfDay(now); stats.StreakDays < maxStreakDays; day = day.AddDate(0, 0, -1) {
		if !allDates[day.Format(dateLayout)] {
			break
		}
		stats.StreakDays++
	}

	for _, s := range filtered {
		stats.TotalExperience += s.ExperiencePoints
	}

	stats.TaskDistribution = distribution(filtered)
	return stats
}

// Zero is the safe default shape returned when the session source fails.
func Zero() domain.Stats {
	return domain.Stats{
		DailyStats:       []domain.DailyStat{},
		TaskDistribution: []domain.TaskDistribution{},
	}
}

// distribution groups sessions by task identity, preferring TaskID and
// falling back to the TaskType snapshot when a session carries no TaskID.
func distribution(sessions []domain.Session) []domain.TaskDistribution {
	counts := map[string]*domain.TaskDistribution{}
	var order []string
	for _, s := range sessions {
		key := s.TaskID
		if key == "" {
			key = s.TaskType
		}
		d, ok := counts[key]
		if !ok {
			d = &domain.TaskDistribution{TaskID: s.TaskID, TaskType: s.TaskType}
			counts[key] = d
			order = append(order, key)
		}
		d.SessionCount++
	}
	res := make([]domain.TaskDistribution, 0, len(order))
	for _, key := range order {
		if counts[key].SessionCount > 0 {
			res = append(res, *counts[key])
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].SessionCount != res[j].SessionCount {
			return res[i].SessionCount > res[j].SessionCount
		}
		return res[i].TaskID < res[j].TaskID
	})
	return res
}

// ApplyTaskNames relabels distribution entries with the live task name looked
// up by TaskID, so renamed tasks retroactively relabel historical stats.
// Entries whose TaskID matches no current task keep their stored snapshot.
// The input slice is not mutated.
func ApplyTaskNames(dist []domain.TaskDistribution, tasks []domain.Task) []domain.TaskDistribution {
	names := make(map[string]string, len(tasks))
	for _, t := range tasks {
		names[t.ID] = t.Name
	}
	out := make([]domain.TaskDistribution, len(dist))
	copy(out, dist)
	for i := range out {
		if name, ok := names[out[i].TaskID]; ok && name != "" {
			out[i].TaskType = name
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
