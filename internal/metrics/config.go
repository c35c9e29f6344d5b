package metrics

// Metric names a derived metric that configuration can switch off.
type Metric string

const (
	MetricGrowth            Metric = "growth"
	MetricMarketShare       Metric = "market_share"
	MetricEvolutionIndex    Metric = "evolution_index"
	MetricRegionalBenchmark Metric = "regional_benchmark"
	MetricChurn             Metric = "churn"
)

// Config enumerates which metrics are computed and the defaults applied to
// leaderboard queries.
type Config struct {
	ShowGrowth                       bool `yaml:"show_growth" json:"show_growth" envconfig:"SHOW_GROWTH"`
	ShowMarketShare                  bool `yaml:"show_market_share" json:"show_market_share" envconfig:"SHOW_MARKET_SHARE"`
	ShowEvolutionIndex               bool `yaml:"show_evolution_index" json:"show_evolution_index" envconfig:"SHOW_EVOLUTION_INDEX"`
	ShowRegionalBenchmark            bool `yaml:"show_regional_benchmark" json:"show_regional_benchmark" envconfig:"SHOW_REGIONAL_BENCHMARK"`
	ShowChurn                        bool `yaml:"show_churn" json:"show_churn" envconfig:"SHOW_CHURN"`
	ExcludeClassRowsFromLeaderboards bool `yaml:"exclude_class_rows_from_leaderboards" json:"exclude_class_rows_from_leaderboards" envconfig:"EXCLUDE_CLASS_ROWS"`
	LeaderboardTopN                  int  `yaml:"leaderboard_top_n" json:"leaderboard_top_n" envconfig:"LEADERBOARD_TOP_N"`
	GrowthMode                       Mode `yaml:"growth_mode" json:"growth_mode" envconfig:"GROWTH_MODE"`
}

// DefaultConfig enables every metric.
func DefaultConfig() Config {
	return Config{
		ShowGrowth:                       true,
		ShowMarketShare:                  true,
		ShowEvolutionIndex:               true,
		ShowRegionalBenchmark:            true,
		ShowChurn:                        true,
		ExcludeClassRowsFromLeaderboards: true,
		LeaderboardTopN:                  10,
		GrowthMode:                       ModePct,
	}
}

// Enabled reports whether m is switched on.
func (c Config) Enabled(m Metric) bool {
	switch m {
	case MetricGrowth:
		return c.ShowGrowth
	case MetricMarketShare:
		return c.ShowMarketShare
	case MetricEvolutionIndex:
		return c.ShowEvolutionIndex
	case MetricRegionalBenchmark:
		return c.ShowRegionalBenchmark && c.ShowEvolutionIndex
	case MetricChurn:
		return c.ShowChurn
	default:
		return false
	}
}
