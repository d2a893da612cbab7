package seed

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math/rand"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/solana"
)

// Dataset contains the generated mirror rows.
type Dataset struct {
	Verifiers []domain.Verifier `json:"verifiers"`
	Ranches   []domain.Ranch    `json:"ranches"`
	Animals   []domain.Animal   `json:"animals"`
}

// Store is the subset of the mirror repository the seeder writes through.
type Store interface {
	CreateVerifier(ctx context.Context, v domain.Verifier) error
	CreateRanch(ctx context.Context, ranch domain.Ranch) error
	CreateAnimal(ctx context.Context, a domain.Animal) error
}

// Seeder produces synthetic registry data with addresses derived the same
// way the program derives them, so seeded rows look like reconciled state.
type Seeder struct {
	cfg       Config
	program   solana.PublicKey
	rand      *rand.Rand
	fragments nameFragments
}

// New returns a configured Seeder. The program id must be a valid base58
// address because every generated row carries real derived addresses.
func New(cfg Config) (*Seeder, error) {
	if cfg.NumVerifiers <= 0 {
		cfg.NumVerifiers = DefaultConfig().NumVerifiers
	}
	if cfg.NumRanches <= 0 {
		cfg.NumRanches = DefaultConfig().NumRanches
	}
	if cfg.AnimalsPerRanch < 0 {
		cfg.AnimalsPerRanch = DefaultConfig().AnimalsPerRanch
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	program, err := solana.ParsePubkey(cfg.ProgramID)
	if err != nil {
		return nil, err
	}

	return &Seeder{
		cfg:       cfg,
		program:   program,
		rand:      rand.New(rand.NewSource(cfg.Seed)),
		fragments: defaultNameFragments(),
	}, nil
}

// Generate synthesises verifiers, ranches and their animals. It respects
// context cancellation.
func (s *Seeder) Generate(ctx context.Context) (Dataset, error) {
	now := time.Now().UTC()

	verifiers := make([]domain.Verifier, s.cfg.NumVerifiers)
	for i := range verifiers {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		authority := s.randomWallet()
		pda, _, err := solana.VerifierPDA(s.program, authority)
		if err != nil {
			return Dataset{}, err
		}
		createdAt := now.Add(-time.Duration(s.rand.Intn(365*24)) * time.Hour)
		verifiers[i] = domain.Verifier{
			PDA:       pda.String(),
			Authority: authority.String(),
			Name:      s.randomVerifierName(i),
			IsActive:  s.rand.Float64() < 0.9,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
	}

	ranches := make([]domain.Ranch, s.cfg.NumRanches)
	var animals []domain.Animal

	for i := range ranches {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		authority := s.randomWallet()
		pda, _, err := solana.RanchPDA(s.program, authority)
		if err != nil {
			return Dataset{}, err
		}

		verified := s.rand.Float64() < s.cfg.VerifiedChance
		animalCount := 0
		if verified {
			animalCount = s.rand.Intn(s.cfg.AnimalsPerRanch + 1)
		}

		createdAt := now.Add(-time.Duration(s.rand.Intn(365*24)) * time.Hour)
		ranches[i] = domain.Ranch{
			PDA:         pda.String(),
			Authority:   authority.String(),
			Name:        s.randomRanchName(),
			Country:     domain.Country(s.rand.Intn(int(domain.CountrySouthKorea) + 1)),
			IsVerified:  verified,
			AnimalCount: uint64(animalCount),
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		}

		for seq := 0; seq < animalCount; seq++ {
			animal, err := s.randomAnimal(ranches[i], verifiers, uint64(seq), now)
			if err != nil {
				return Dataset{}, err
			}
			animals = append(animals, animal)
		}
	}

	return Dataset{Verifiers: verifiers, Ranches: ranches, Animals: animals}, nil
}

// Apply inserts the dataset through the store. Verifiers and ranches go in
// before animals so foreign references resolve naturally when browsing.
func (s *Seeder) Apply(ctx context.Context, dataset Dataset, store Store) error {
	for _, v := range dataset.Verifiers {
		if err := store.CreateVerifier(ctx, v); err != nil {
			return fmt.Errorf("seed verifier %s: %w", v.PDA, err)
		}
	}
	for _, ranch := range dataset.Ranches {
		if err := store.CreateRanch(ctx, ranch); err != nil {
			return fmt.Errorf("seed ranch %s: %w", ranch.PDA, err)
		}
	}
	for _, animal := range dataset.Animals {
		if err := store.CreateAnimal(ctx, animal); err != nil {
			return fmt.Errorf("seed animal %s: %w", animal.PDA, err)
		}
	}
	return nil
}

func (s *Seeder) randomAnimal(ranch domain.Ranch, verifiers []domain.Verifier, seq uint64, now time.Time) (domain.Animal, error) {
	ranchAddr, err := solana.ParsePubkey(ranch.PDA)
	if err != nil {
		return domain.Animal{}, err
	}
	pda, _, err := solana.AnimalPDA(s.program, ranchAddr, seq)
	if err != nil {
		return domain.Animal{}, err
	}

	kind := s.fragments.species[s.rand.Intn(len(s.fragments.species))]
	verified := s.rand.Float64() < s.cfg.VerifiedChance
	assigned := ""
	if len(verifiers) > 0 {
		assigned = verifiers[s.rand.Intn(len(verifiers))].Authority
	}

	animal := domain.Animal{
		PDA:              pda.String(),
		Seq:              seq,
		Owner:            ranch.Authority,
		RanchPDA:         ranch.PDA,
		ChipID:           fmt.Sprintf("CHIP-%06d", s.rand.Intn(1000000)),
		Specie:           kind.specie,
		Breed:            kind.breeds[s.rand.Intn(len(kind.breeds))],
		BirthDate:        now.Add(-time.Duration(s.rand.Intn(5*365*24)) * time.Hour).Unix(),
		IsVerified:       verified,
		AssignedVerifier: assigned,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if verified && s.rand.Float64() < s.cfg.OnSaleChance {
		price := uint64(s.rand.Intn(900)+100) * 10_000_000 // 1 to 9 SOL in lamports
		animal.SalePrice = &price
	}
	if s.rand.Float64() < 0.3 {
		last := uint64(s.rand.Intn(900)+100) * 10_000_000
		animal.LastSalePrice = &last
	}

	return animal, nil
}

// randomWallet derives a deterministic keypair from the seeded source so
// repeated runs with the same seed produce the same addresses.
func (s *Seeder) randomWallet() solana.PublicKey {
	var keySeed [ed25519.SeedSize]byte
	s.rand.Read(keySeed[:])
	key := solanago.PrivateKey(ed25519.NewKeyFromSeed(keySeed[:]))
	return key.PublicKey()
}

func (s *Seeder) randomRanchName() string {
	return fmt.Sprintf("%s %s",
		s.fragments.ranchPrefixes[s.rand.Intn(len(s.fragments.ranchPrefixes))],
		s.fragments.ranchSuffixes[s.rand.Intn(len(s.fragments.ranchSuffixes))])
}

func (s *Seeder) randomVerifierName(i int) string {
	return fmt.Sprintf("%s Inspection #%d",
		s.fragments.verifierOrgs[s.rand.Intn(len(s.fragments.verifierOrgs))], i+1)
}

type speciesEntry struct {
	specie string
	breeds []string
}

type nameFragments struct {
	ranchPrefixes []string
	ranchSuffixes []string
	verifierOrgs  []string
	species       []speciesEntry
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		ranchPrefixes: []string{"Sunset", "Cedar Creek", "High Plains", "Rio Verde", "Lone Oak", "Willow Bend", "Santa Elena", "Blue Ridge", "Pampa Grande", "Silver Springs"},
		ranchSuffixes: []string{"Ranch", "Cattle Co", "Estancia", "Farms", "Livestock", "Pastures"},
		verifierOrgs:  []string{"National", "Regional", "Provincial", "Federal"},
		species: []speciesEntry{
			{specie: "Bovine", breeds: []string{"Angus", "Hereford", "Brahman", "Charolais", "Nelore"}},
			{specie: "Ovine", breeds: []string{"Merino", "Suffolk", "Dorper", "Corriedale"}},
			{specie: "Equine", breeds: []string{"Quarter Horse", "Criollo", "Arabian"}},
			{specie: "Caprine", breeds: []string{"Boer", "Saanen", "Nubian"}},
		},
	}
}
