package energy

import "time"

// Mode selects how drain terms are weighted for the user's lifestyle.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeAthlete  Mode = "athlete"
	ModeRecovery Mode = "recovery"
)

// Scaling multiplies each drain term. A scale of 1 leaves the term unchanged.
type Scaling struct {
	Activity    float64 `mapstructure:"activity"`
	Stress      float64 `mapstructure:"stress"`
	Environment float64 `mapstructure:"environment"`
}

// Config holds the tunable constants of the energy model.
type Config struct {
	// BaselineDrain is the drain in percent per hour with no activity,
	// stress or environmental load. Expressed as a positive magnitude.
	BaselineDrain float64

	// ActivityDrain is percent per hour per 100 kcal of active energy.
	ActivityDrain float64

	// StressDrain is percent per hour at stress level 1.0.
	StressDrain float64

	// EnvironmentDrain is percent per hour at environment factor 1.0.
	EnvironmentDrain float64

	SleepTarget     time.Duration
	DeepSleepTarget float64 // ideal deep-sleep share of total sleep
	SleepWeight     float64 // weight of sleep vs HRV in the morning charge

	// CriticalPenalty scales the morning charge when the previous day ended
	// in the critical band.
	CriticalPenalty float64

	// Location and DayStart define the observation day: it begins DayStart
	// after local midnight in Location. A nil Location means UTC.
	Location *time.Location
	DayStart time.Duration

	Modes map[Mode]Scaling
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		BaselineDrain:    2.0,
		ActivityDrain:    1.5,
		StressDrain:      3.0,
		EnvironmentDrain: 2.0,
		SleepTarget:      8 * time.Hour,
		DeepSleepTarget:  0.20,
		SleepWeight:      0.6,
		CriticalPenalty:  0.85,
		Modes: map[Mode]Scaling{
			ModeStandard: {Activity: 1.0, Stress: 1.0, Environment: 1.0},
			ModeAthlete:  {Activity: 0.5, Stress: 1.0, Environment: 0.8},
			ModeRecovery: {Activity: 1.3, Stress: 1.2, Environment: 1.2},
		},
	}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.BaselineDrain <= 0 {
		cfg.BaselineDrain = def.BaselineDrain
	}
	if cfg.ActivityDrain <= 0 {
		cfg.ActivityDrain = def.ActivityDrain
	}
	if cfg.StressDrain <= 0 {
		cfg.StressDrain = def.StressDrain
	}
	if cfg.EnvironmentDrain <= 0 {
		cfg.EnvironmentDrain = def.EnvironmentDrain
	}
	if cfg.SleepTarget <= 0 {
		cfg.SleepTarget = def.SleepTarget
	}
	if cfg.DeepSleepTarget <= 0 {
		cfg.DeepSleepTarget = def.DeepSleepTarget
	}
	if cfg.SleepWeight <= 0 || cfg.SleepWeight > 1 {
		cfg.SleepWeight = def.SleepWeight
	}
	if cfg.CriticalPenalty <= 0 || cfg.CriticalPenalty >= 1 {
		cfg.CriticalPenalty = def.CriticalPenalty
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DayStart < 0 || cfg.DayStart >= 24*time.Hour {
		cfg.DayStart = 0
	}
	modes := make(map[Mode]Scaling, len(def.Modes))
	for m, s := range def.Modes {
		modes[m] = s
	}
	for m, s := range cfg.Modes {
		modes[m] = s
	}
	cfg.Modes = modes
	return cfg
}
