package seed

// Config drives the synthetic mirror data seeder.
type Config struct {
	ProgramID       string
	NumVerifiers    int
	NumRanches      int
	AnimalsPerRanch int
	VerifiedChance  float64
	OnSaleChance    float64
	Seed            int64
}

// DefaultConfig returns baseline settings for a small local dataset.
func DefaultConfig() Config {
	return Config{
		NumVerifiers:    5,
		NumRanches:      20,
		AnimalsPerRanch: 10,
		VerifiedChance:  0.7,
		OnSaleChance:    0.2,
		Seed:            42,
	}
}
