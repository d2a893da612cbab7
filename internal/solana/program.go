package solana

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"

	"github.com/solranch/backend/internal/domain"
)

// Program builds instructions for the livestock registry program. Account
// ordering in each builder is fixed by the on-chain account structs.
type Program struct {
	ID PublicKey
}

// NewProgram parses the program address.
func NewProgram(id string) (*Program, error) {
	pk, err := solanago.PublicKeyFromBase58(id)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "invalid program id", err)
	}
	return &Program{ID: pk}, nil
}

func (p *Program) instruction(name string, args any, metas solanago.AccountMetaSlice) (solanago.Instruction, error) {
	var buf bytes.Buffer
	buf.Write(instructionDiscriminator(name))
	if args != nil {
		if err := bin.NewBorshEncoder(&buf).Encode(args); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "encode "+name+" args", err)
		}
	}
	return solanago.NewInstruction(p.ID, metas, buf.Bytes()), nil
}

type registerRanchArgs struct {
	Name    string
	Country uint8
}

// RegisterRanch creates a ranch profile owned by authority.
func (p *Program) RegisterRanch(authority PublicKey, name string, country domain.Country) (solanago.Instruction, error) {
	ranchPDA, _, err := RanchPDA(p.ID, authority)
	if err != nil {
		return nil, err
	}
	return p.instruction("register_ranch", registerRanchArgs{Name: name, Country: uint8(country)}, solanago.AccountMetaSlice{
		solanago.Meta(ranchPDA).WRITE(),
		solanago.Meta(authority).WRITE().SIGNER(),
		solanago.Meta(solanago.SystemProgramID),
	})
}

type registerAnimalArgs struct {
	IDChip    string
	Specie    string
	Breed     string
	BirthDate int64
}

// RegisterAnimal creates an animal account under a ranch. Both the ranch
// authority and the chosen verifier must sign.
func (p *Program) RegisterAnimal(animal, ranch, verifierProfile, authority, verifier PublicKey, chipID, specie, breed string, birthDate int64) (solanago.Instruction, error) {
	args := registerAnimalArgs{IDChip: chipID, Specie: specie, Breed: breed, BirthDate: birthDate}
	return p.instruction("register_animal", args, solanago.AccountMetaSlice{
		solanago.Meta(animal).WRITE(),
		solanago.Meta(verifierProfile),
		solanago.Meta(ranch).WRITE(),
		solanago.Meta(authority).WRITE().SIGNER(),
		solanago.Meta(verifier).WRITE().SIGNER(),
		solanago.Meta(solanago.SystemProgramID),
	})
}

// ApproveAnimal marks an animal verified; only its assigned verifier signs.
func (p *Program) ApproveAnimal(animal, assignedVerifier PublicKey) (solanago.Instruction, error) {
	return p.instruction("approve_animal", nil, solanago.AccountMetaSlice{
		solanago.Meta(animal).WRITE(),
		solanago.Meta(assignedVerifier).WRITE().SIGNER(),
		solanago.Meta(solanago.SystemProgramID),
	})
}

// CancelAnimalRegistration closes an unverified animal account, returning
// rent to receiver. Signer is the owner or the assigned verifier.
func (p *Program) CancelAnimalRegistration(animal, ranch, signer, authority, receiver PublicKey) (solanago.Instruction, error) {
	return p.instruction("cancel_animal_registration", nil, solanago.AccountMetaSlice{
		solanago.Meta(animal).WRITE(),
		solanago.Meta(ranch).WRITE(),
		solanago.Meta(signer).WRITE().SIGNER(),
		solanago.Meta(authority),
		solanago.Meta(receiver).WRITE(),
		solanago.Meta(solanago.SystemProgramID),
	})
}

type setAnimalPriceArgs struct {
	Price uint64
}

// SetAnimalPrice lists a verified animal for sale.
func (p *Program) SetAnimalPrice(animal, owner, originRanch PublicKey, price uint64) (solanago.Instruction, error) {
	return p.instruction("set_animal_price", setAnimalPriceArgs{Price: price}, solanago.AccountMetaSlice{
		solanago.Meta(animal).WRITE(),
		solanago.Meta(owner).SIGNER(),
		solanago.Meta(originRanch),
		solanago.Meta(solanago.SystemProgramID),
	})
}

type setAllowedAnimalBuyerArgs struct {
	Buyer PublicKey
}

// SetAllowedAnimalBuyer designates the wallet allowed to purchase.
func (p *Program) SetAllowedAnimalBuyer(animal, owner, originRanch, buyer PublicKey) (solanago.Instruction, error) {
	return p.instruction("set_allowed_animal_buyer", setAllowedAnimalBuyerArgs{Buyer: buyer}, solanago.AccountMetaSlice{
		solanago.Meta(animal).WRITE(),
		solanago.Meta(owner).SIGNER(),
		solanago.Meta(originRanch),
		solanago.Meta(solanago.SystemProgramID),
	})
}

// PurchaseAnimal transfers ownership to the allowed buyer; lamports flow to
// the previous owner inside the program.
func (p *Program) PurchaseAnimal(animal, owner, buyer PublicKey) (solanago.Instruction, error) {
	return p.instruction("purchase_animal", nil, solanago.AccountMetaSlice{
		solanago.Meta(animal).WRITE(),
		solanago.Meta(owner).WRITE(),
		solanago.Meta(buyer).WRITE().SIGNER(),
		solanago.Meta(solanago.SystemProgramID),
	})
}

type registerVerifierArgs struct {
	VerifierAuthority PublicKey
	Name              string
}

// RegisterVerifier creates a verifier profile; only the program authority may
// sign.
func (p *Program) RegisterVerifier(superAuthority, verifierAuthority PublicKey, name string) (solanago.Instruction, error) {
	verifierPDA, _, err := VerifierPDA(p.ID, verifierAuthority)
	if err != nil {
		return nil, err
	}
	args := registerVerifierArgs{VerifierAuthority: verifierAuthority, Name: name}
	return p.instruction("register_verifier", args, solanago.AccountMetaSlice{
		solanago.Meta(verifierPDA).WRITE(),
		solanago.Meta(superAuthority).WRITE().SIGNER(),
		solanago.Meta(solanago.SystemProgramID),
	})
}

type setRanchVerificationArgs struct {
	IsVerified bool
}

// SetRanchVerification flips a ranch's verified flag; program authority only.
func (p *Program) SetRanchVerification(ranch, superAuthority PublicKey, verified bool) (solanago.Instruction, error) {
	return p.instruction("set_ranch_verification", setRanchVerificationArgs{IsVerified: verified}, solanago.AccountMetaSlice{
		solanago.Meta(ranch).WRITE(),
		solanago.Meta(superAuthority).WRITE().SIGNER(),
	})
}

// ToggleVerifierStatus flips a verifier's active flag; program authority only.
func (p *Program) ToggleVerifierStatus(verifierProfile, superAuthority PublicKey) (solanago.Instruction, error) {
	return p.instruction("toggle_verifier_status", nil, solanago.AccountMetaSlice{
		solanago.Meta(verifierProfile).WRITE(),
		solanago.Meta(superAuthority).WRITE().SIGNER(),
	})
}
