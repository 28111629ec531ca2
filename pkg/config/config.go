package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Allocation strategy names accepted in configuration.
const (
	StrategyBalanced       = "BALANCED"
	StrategyGreedy         = "GREEDY"
	StrategyStudentOptimal = "STUDENT_OPTIMAL"
	StrategyCourseOptimal  = "COURSE_OPTIMAL"
)

// Scoring preset names accepted in configuration.
const (
	PresetDefault         = "DEFAULT"
	PresetCompetitive     = "COMPETITIVE"
	PresetInterestFocused = "INTEREST_FOCUSED"
	PresetFCFSLeaning     = "FCFS_LEANING"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Scoring    ScoringConfig
	Allocation AllocationConfig
	Batch      BatchConfig
	Waitlist   WaitlistConfig
	Export     ExportConfig
}

type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ScoringConfig holds the fit-score weights and time-decay tuning. The five
// weights must sum to 1.0 within a 0.01 tolerance unless a named preset
// overrides them.
type ScoringConfig struct {
	Preset             string
	GPAWeight          float64
	InterestWeight     float64
	TimeWeight         float64
	YearFitWeight      float64
	PrerequisiteWeight float64
	TimeDecayHours     float64
	MaxTimeBonus       float64
}

// AllocationConfig governs batch allocation behaviour.
type AllocationConfig struct {
	Strategy                    string
	MaxCoursesPerStudent        int
	AllowOversubscription       float64
	PrioritizeStudentTopChoices bool
}

// BatchConfig controls the periodic allocation worker.
type BatchConfig struct {
	Interval        time.Duration
	EnableAutoBatch bool
}

// WaitlistConfig tunes the per-course advisory lock.
type WaitlistConfig struct {
	LockTTL time.Duration
}

// ExportConfig controls the on-disk archive of generated exports.
type ExportConfig struct {
	ArchiveEnabled bool
	Dir            string
	Retention      time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("ENABLE_PERSISTENCE"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS_WAITLIST"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scoring = ScoringConfig{
		Preset:             strings.ToUpper(v.GetString("SCORING_PRESET")),
		GPAWeight:          v.GetFloat64("SCORING_GPA_WEIGHT"),
		InterestWeight:     v.GetFloat64("SCORING_INTEREST_WEIGHT"),
		TimeWeight:         v.GetFloat64("SCORING_TIME_WEIGHT"),
		YearFitWeight:      v.GetFloat64("SCORING_YEAR_FIT_WEIGHT"),
		PrerequisiteWeight: v.GetFloat64("SCORING_PREREQUISITE_WEIGHT"),
		TimeDecayHours:     v.GetFloat64("SCORING_TIME_DECAY_HOURS"),
		MaxTimeBonus:       v.GetFloat64("SCORING_MAX_TIME_BONUS"),
	}

	cfg.Allocation = AllocationConfig{
		Strategy:                    strings.ToUpper(v.GetString("ALLOCATION_STRATEGY")),
		MaxCoursesPerStudent:        v.GetInt("ALLOCATION_MAX_COURSES_PER_STUDENT"),
		AllowOversubscription:       v.GetFloat64("ALLOCATION_OVERSUBSCRIPTION"),
		PrioritizeStudentTopChoices: v.GetBool("ALLOCATION_PRIORITIZE_TOP_CHOICES"),
	}

	cfg.Batch = BatchConfig{
		Interval:        parseDuration(v.GetString("BATCH_INTERVAL"), 5*time.Minute),
		EnableAutoBatch: v.GetBool("ENABLE_AUTO_BATCH"),
	}

	cfg.Waitlist = WaitlistConfig{
		LockTTL: parseDuration(v.GetString("WAITLIST_LOCK_TTL"), 30*time.Second),
	}

	cfg.Export = ExportConfig{
		ArchiveEnabled: v.GetBool("ENABLE_EXPORT_ARCHIVE"),
		Dir:            v.GetString("EXPORT_DIR"),
		Retention:      parseDuration(v.GetString("EXPORT_RETENTION"), 7*24*time.Hour),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Scoring.Preset == PresetDefault || c.Scoring.Preset == "" {
		sum := c.Scoring.GPAWeight + c.Scoring.InterestWeight + c.Scoring.TimeWeight +
			c.Scoring.YearFitWeight + c.Scoring.PrerequisiteWeight
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
		}
	}
	if c.Scoring.TimeDecayHours <= 0 {
		return fmt.Errorf("SCORING_TIME_DECAY_HOURS must be positive, got %v", c.Scoring.TimeDecayHours)
	}
	if c.Allocation.AllowOversubscription < 0 {
		return fmt.Errorf("ALLOCATION_OVERSUBSCRIPTION must be >= 0, got %v", c.Allocation.AllowOversubscription)
	}
	switch c.Allocation.Strategy {
	case StrategyBalanced, StrategyGreedy, StrategyStudentOptimal, StrategyCourseOptimal:
	default:
		return fmt.Errorf("unknown allocation strategy %q", c.Allocation.Strategy)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("ENABLE_PERSISTENCE", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_registration")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS_WAITLIST", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCORING_PRESET", PresetDefault)
	v.SetDefault("SCORING_GPA_WEIGHT", 0.35)
	v.SetDefault("SCORING_INTEREST_WEIGHT", 0.30)
	v.SetDefault("SCORING_TIME_WEIGHT", 0.20)
	v.SetDefault("SCORING_YEAR_FIT_WEIGHT", 0.10)
	v.SetDefault("SCORING_PREREQUISITE_WEIGHT", 0.05)
	v.SetDefault("SCORING_TIME_DECAY_HOURS", 168.0)
	v.SetDefault("SCORING_MAX_TIME_BONUS", 1.0)

	v.SetDefault("ALLOCATION_STRATEGY", StrategyBalanced)
	v.SetDefault("ALLOCATION_MAX_COURSES_PER_STUDENT", 5)
	v.SetDefault("ALLOCATION_OVERSUBSCRIPTION", 0.0)
	v.SetDefault("ALLOCATION_PRIORITIZE_TOP_CHOICES", true)

	v.SetDefault("BATCH_INTERVAL", "5m")
	v.SetDefault("ENABLE_AUTO_BATCH", true)

	v.SetDefault("WAITLIST_LOCK_TTL", "30s")

	v.SetDefault("ENABLE_EXPORT_ARCHIVE", false)
	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_RETENTION", "168h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
