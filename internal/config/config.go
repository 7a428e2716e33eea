package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/greed-games/greedroulette/internal/engine"
)

// Config is processed from the environment with envconfig. All timing knobs
// have defaults matching the original game pacing; tests construct their own.
type Config struct {
	Addr  string `envconfig:"ADDR" default:":8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// Optional postgres DSN for the ended-game archive. Empty disables it.
	ArchiveDSN string `envconfig:"ARCHIVE_DSN" default:""`

	// Number of ended-game summaries kept for GET /games/recent.
	RecentGames int `envconfig:"RECENT_GAMES" default:"64"`

	MinigameStartDelay  time.Duration `envconfig:"MINIGAME_START_DELAY" default:"3s"`
	MinigameEnableMin   time.Duration `envconfig:"MINIGAME_ENABLE_MIN" default:"1s"`
	MinigameEnableMax   time.Duration `envconfig:"MINIGAME_ENABLE_MAX" default:"5s"`
	MinigameClickWindow time.Duration `envconfig:"MINIGAME_CLICK_WINDOW" default:"10s"`
	MinigameRoundDelay  time.Duration `envconfig:"MINIGAME_ROUND_DELAY" default:"3s"`
	ScoreboardDelay     time.Duration `envconfig:"SCOREBOARD_DELAY" default:"5s"`
	SpinDelay           time.Duration `envconfig:"SPIN_DELAY" default:"4s"`

	// Survival payout per round in MoneyRush mode.
	MoneyPerRound int `envconfig:"MONEY_PER_ROUND" default:"100"`
}

// Timing maps the pacing knobs onto the orchestrator's schedule.
func (c Config) Timing() engine.Timing {
	return engine.Timing{
		MinigameStartDelay: c.MinigameStartDelay,
		EnableMin:          c.MinigameEnableMin,
		EnableMax:          c.MinigameEnableMax,
		ClickWindow:        c.MinigameClickWindow,
		RoundDelay:         c.MinigameRoundDelay,
		ScoreboardDelay:    c.ScoreboardDelay,
		SpinDelay:          c.SpinDelay,
		MoneyPerRound:      c.MoneyPerRound,
	}
}

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("greedroulette", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
