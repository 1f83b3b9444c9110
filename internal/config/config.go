package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Config models focusquest.yml. It is stored in the database and imported
// explicitly; the core calculation packages only ever see its validated
// integer fields.
type Config struct {
	Timer  TimerConfig           `yaml:"timer" json:"timer"`
	Award  AwardConfig           `yaml:"award" json:"award"`
	Jobs   map[string]Job        `yaml:"jobs" json:"jobs"`
	Skills map[string][]SkillDef `yaml:"skills" json:"skills"`
}

// TimerConfig holds the focus timer durations in minutes.
type TimerConfig struct {
	WorkMinutes            int  `yaml:"work_minutes" json:"work_minutes"`
	ShortBreakMinutes      int  `yaml:"short_break_minutes" json:"short_break_minutes"`
	LongBreakMinutes       int  `yaml:"long_break_minutes" json:"long_break_minutes"`
	SessionsUntilLongBreak int  `yaml:"sessions_until_long_break" json:"sessions_until_long_break"`
	AutoStartBreaks        bool `yaml:"auto_start_breaks" json:"auto_start_breaks"`
	AutoStartPomodoros     bool `yaml:"auto_start_pomodoros" json:"auto_start_pomodoros"`
}

// AwardConfig holds the progression ruleset knobs.
type AwardConfig struct {
	SessionPoints int `yaml:"session_points" json:"session_points"`
	TaskLimit     int `yaml:"task_limit" json:"task_limit"`
}

// Job is a cosmetic category for tasks. The bonus text is display-only and
// never influences experience math: all jobs earn identical experience per
// session regardless of bonus text.
type Job struct {
	Name  string `yaml:"name" json:"name"`
	Icon  string `yaml:"icon" json:"icon"`
	Bonus string `yaml:"bonus" json:"bonus,omitempty"`
}

// SkillDef is one unlockable skill in a job's list.
type SkillDef struct {
	Name        string `yaml:"name" json:"name"`
	Level       int    `yaml:"level" json:"level"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Validate ensures the config meets required structure and bounds.
func (c *Config) Validate() error {
	t := c.Timer
	if t.WorkMinutes <= 0 || t.ShortBreakMinutes <= 0 || t.LongBreakMinutes <= 0 || t.SessionsUntilLongBreak <= 0 {
		return fmt.Errorf("config.timer: all durations must be greater than zero")
	}
	if t.WorkMinutes > 120 {
		return fmt.Errorf("config.timer.work_minutes must be 120 or less")
	}
	if t.ShortBreakMinutes > 30 {
		return fmt.Errorf("config.timer.short_break_minutes must be 30 or less")
	}
	if t.LongBreakMinutes > 60 {
		return fmt.Errorf("config.timer.long_break_minutes must be 60 or less")
	}
	if t.SessionsUntilLongBreak > 10 {
		return fmt.Errorf("config.timer.sessions_until_long_break must be 10 or less")
	}
	if c.Award.SessionPoints <= 0 {
		return fmt.Errorf("config.award.session_points must be positive")
	}
	if c.Award.TaskLimit <= 0 {
		return fmt.Errorf("config.award.task_limit must be positive")
	}
	if len(c.Jobs) == 0 {
		return fmt.Errorf("config.jobs is required")
	}
	for id, job := range c.Jobs {
		if id == "" {
			return fmt.Errorf("config.jobs contains empty job id")
		}
		if job.Name == "" {
			return fmt.Errorf("job %s has no name", id)
		}
	}
	for jobID, skills := range c.Skills {
		if _, ok := c.Jobs[jobID]; !ok {
			return fmt.Errorf("config.skills references unknown job %s", jobID)
		}
		for _, s := range skills {
			if s.Name == "" {
				return fmt.Errorf("job %s has a skill with no name", jobID)
			}
			if s.Level < 1 {
				return fmt.Errorf("skill %s for job %s has invalid unlock level %d", s.Name, jobID, s.Level)
			}
		}
	}
	return nil
}

// SkillsFor returns a job's skill list ordered by unlock level.
func (c *Config) SkillsFor(jobType string) []SkillDef {
	skills := append([]SkillDef(nil), c.Skills[jobType]...)
	sort.Slice(skills, func(i, j int) bool { return skills[i].Level < skills[j].Level })
	return skills
}

// HasJob reports whether the catalog defines the job type.
func (c *Config) HasJob(jobType string) bool {
	_, ok := c.Jobs[jobType]
	return ok
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `timer:
  work_minutes: 25
  short_break_minutes: 5
  long_break_minutes: 15
  sessions_until_long_break: 4
  auto_start_breaks: false
  auto_start_pomodoros: false

award:
  session_points: 100
  task_limit: 3

jobs:
  warrior:
    name: Warrior
    icon: shield-outline
    bonus: "Focus endurance +20%"
  mage:
    name: Mage
    icon: flash-outline
    bonus: "Focus experience +30%"
  priest:
    name: Priest
    icon: heart-outline
    bonus: "Recovery +40%"
  sage:
    name: Sage
    icon: school-outline
    bonus: "Skill acquisition +25%"

skills:
  warrior:
    - name: Brave Charge
      level: 3
      description: "An unbreakable rush of back-to-back focus"
    - name: Dawnbreaker
      level: 5
      description: "A waking strike delivered with a clear morning mind"
    - name: Tactical Mind
      level: 8
      description: "Reads the battlefield and picks the optimal move"
    - name: Iron Will
      level: 12
      description: "A spirit no distraction can bend"
    - name: Over Limiter
      level: 16
      description: "Breaks through one's own limits"
    - name: Furious Heart
      level: 20
      description: "Awakens the sleeping warrior's fighting spirit"
    - name: Valhalla Soul
      level: 25
      description: "The undying secret art of legendary warriors"
  mage:
    - name: Arcana Surge
      level: 3
      description: "Instantly amplifies stored magical focus"
    - name: Chaos Rain
      level: 5
      description: "An unpredictable downpour of raw power"
    - name: Forbidden Grimoire
      level: 8
      description: "Seals hard-won secrets into a private tome"
    - name: Penta Elemental
      level: 12
      description: "Full command over the five elements"
    - name: Chrono Distortion
      level: 16
      description: "Bends the flow of time itself"
    - name: Infinity Blast
      level: 20
      description: "Removes every limiter at once"
    - name: Apocalypse Code
      level: 25
      description: "Rewrites the world in a single cast"
  priest:
    - name: Celestial Harmony
      level: 3
      description: "A healing wave poured down from above"
    - name: Septagon Circle
      level: 5
      description: "A sacred circle formed by seven days of prayer"
    - name: Astral Meditation
      level: 8
      description: "A meditation that reaches beyond the body"
    - name: Aura Restoration
      level: 12
      description: "Draws vitality from the root of life"
    - name: Divine Resonance
      level: 16
      description: "A blessing that shares sacred strength"
    - name: Transcendental Force
      level: 20
      description: "Power released from a state of enlightenment"
    - name: Immortal Serenity
      level: 25
      description: "The ultimate prayer of eternal calm"
  sage:
    - name: Intelligence Matrix
      level: 3
      description: "Organizes knowledge into a perfect system"
    - name: Omnisight Vision
      level: 5
      description: "Reads any data at a glance"
    - name: Universal Adapter
      level: 8
      description: "Absorbs any field of knowledge"
    - name: Epiphany Field
      level: 12
      description: "A domain that breeds deep insight"
    - name: Neo Cortics
      level: 16
      description: "Accelerated circuits for absorbing knowledge"
    - name: Knowledge Singularity
      level: 20
      description: "Converges all learning into a single point"
    - name: Cosmic Consciousness
      level: 25
      description: "Connects to the knowledge of the universe"
`
