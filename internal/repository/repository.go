package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/solranch/backend/internal/domain"
)

// Repository encapsulates mirror-database persistence.
type Repository struct {
	db *gorm.DB
}

// New instantiates a Repository backed by the supplied database handle.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Ping verifies database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.WithContext(ctx).DB()
	if err != nil {
		return fmt.Errorf("acquire database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func translateGormError(err error, what string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.Wrap(domain.KindNotFound, what+" not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.Wrap(domain.KindConflict, what+" already exists", err)
	default:
		return domain.Wrap(domain.KindInternal, what+" query failed", err)
	}
}

func normalizePage(page, limit int) (offset, capped int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit, limit
}

// --- users & sessions ---

// GetUser loads a user by wallet public key.
func (r *Repository) GetUser(ctx context.Context, pubkey string) (domain.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("public_key = ?", pubkey).First(&m).Error; err != nil {
		return domain.User{}, translateGormError(err, "user")
	}
	return m.toDomain(), nil
}

// CreateUser inserts a new user row.
func (r *Repository) CreateUser(ctx context.Context, user domain.User) error {
	m := userModel{
		PublicKey: user.PublicKey,
		Nonce:     user.Nonce,
		Roles:     rolesToCSV(user.Roles),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateGormError(err, "user")
	}
	return nil
}

// UpdateUserNonce rotates the login nonce for a wallet.
func (r *Repository) UpdateUserNonce(ctx context.Context, pubkey, nonce string) error {
	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("public_key = ?", pubkey).
		Update("nonce", nonce)
	if res.Error != nil {
		return translateGormError(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		return domain.Ef(domain.KindNotFound, "user %s not found", pubkey)
	}
	return nil
}

// AddUserRole grants a role if the user does not already hold it.
func (r *Repository) AddUserRole(ctx context.Context, pubkey string, role domain.Role) error {
	user, err := r.GetUser(ctx, pubkey)
	if err != nil {
		return err
	}
	if user.HasRole(role) {
		return nil
	}
	roles := rolesToCSV(append(user.Roles, role))
	res := r.db.WithContext(ctx).Model(&userModel{}).
		Where("public_key = ?", pubkey).
		Update("roles", roles)
	if res.Error != nil {
		return translateGormError(res.Error, "user")
	}
	return nil
}

// CreateSession stores an issued session token.
func (r *Repository) CreateSession(ctx context.Context, session domain.Session) error {
	m := sessionModel{
		Token:     session.Token,
		PublicKey: session.PublicKey,
		ExpiresAt: session.ExpiresAt,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateGormError(err, "session")
	}
	return nil
}

// GetSession loads a session by its opaque token.
func (r *Repository) GetSession(ctx context.Context, token string) (domain.Session, error) {
	var m sessionModel
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&m).Error; err != nil {
		return domain.Session{}, translateGormError(err, "session")
	}
	return m.toDomain(), nil
}

// DeleteExpiredSessions prunes sessions past their expiry.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) error {
	if err := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&sessionModel{}).Error; err != nil {
		return translateGormError(err, "session")
	}
	return nil
}

// --- ranches ---

// CreateRanch inserts a mirror row for a confirmed ranch account.
func (r *Repository) CreateRanch(ctx context.Context, ranch domain.Ranch) error {
	m := ranchToModel(ranch)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateGormError(err, "ranch")
	}
	return nil
}

// GetRanchByPDA loads a ranch by its account address.
func (r *Repository) GetRanchByPDA(ctx context.Context, pda string) (domain.Ranch, error) {
	var m ranchModel
	if err := r.db.WithContext(ctx).Where("pda = ?", pda).First(&m).Error; err != nil {
		return domain.Ranch{}, translateGormError(err, "ranch")
	}
	return m.toDomain(), nil
}

// GetRanchByAuthority loads the ranch owned by a wallet.
func (r *Repository) GetRanchByAuthority(ctx context.Context, authority string) (domain.Ranch, error) {
	var m ranchModel
	if err := r.db.WithContext(ctx).Where("authority = ?", authority).First(&m).Error; err != nil {
		return domain.Ranch{}, translateGormError(err, "ranch")
	}
	return m.toDomain(), nil
}

// UpdateRanch overwrites the mutable fields of a ranch row.
func (r *Repository) UpdateRanch(ctx context.Context, ranch domain.Ranch) error {
	res := r.db.WithContext(ctx).Model(&ranchModel{}).
		Where("pda = ?", ranch.PDA).
		Updates(map[string]any{
			"name":         ranch.Name,
			"country":      uint8(ranch.Country),
			"is_verified":  ranch.IsVerified,
			"animal_count": ranch.AnimalCount,
		})
	if res.Error != nil {
		return translateGormError(res.Error, "ranch")
	}
	if res.RowsAffected == 0 {
		return domain.Ef(domain.KindNotFound, "ranch %s not found", ranch.PDA)
	}
	return nil
}

// ListRanches returns paginated ranches matching the filter.
func (r *Repository) ListRanches(ctx context.Context, filter domain.RanchFilter) (domain.RanchListResult, error) {
	q := r.db.WithContext(ctx).Model(&ranchModel{})
	if filter.Name != "" {
		q = q.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Country != nil {
		q = q.Where("country = ?", uint8(*filter.Country))
	}
	if filter.Verified != nil {
		q = q.Where("is_verified = ?", *filter.Verified)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return domain.RanchListResult{}, translateGormError(err, "ranch")
	}

	offset, limit := normalizePage(filter.Page, filter.Limit)
	var models []ranchModel
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return domain.RanchListResult{}, translateGormError(err, "ranch")
	}

	out := domain.RanchListResult{Total: total, Items: make([]domain.Ranch, 0, len(models))}
	for _, m := range models {
		out.Items = append(out.Items, m.toDomain())
	}
	return out, nil
}

// --- verifiers ---

// CreateVerifier inserts a mirror row for a confirmed verifier account.
func (r *Repository) CreateVerifier(ctx context.Context, v domain.Verifier) error {
	m := verifierToModel(v)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateGormError(err, "verifier")
	}
	return nil
}

// GetVerifierByPDA loads a verifier by its account address.
func (r *Repository) GetVerifierByPDA(ctx context.Context, pda string) (domain.Verifier, error) {
	var m verifierModel
	if err := r.db.WithContext(ctx).Where("pda = ?", pda).First(&m).Error; err != nil {
		return domain.Verifier{}, translateGormError(err, "verifier")
	}
	return m.toDomain(), nil
}

// GetVerifierByAuthority loads the verifier profile of a wallet.
func (r *Repository) GetVerifierByAuthority(ctx context.Context, authority string) (domain.Verifier, error) {
	var m verifierModel
	if err := r.db.WithContext(ctx).Where("authority = ?", authority).First(&m).Error; err != nil {
		return domain.Verifier{}, translateGormError(err, "verifier")
	}
	return m.toDomain(), nil
}

// SetVerifierActive updates the active flag of a verifier row.
func (r *Repository) SetVerifierActive(ctx context.Context, pda string, active bool) error {
	res := r.db.WithContext(ctx).Model(&verifierModel{}).
		Where("pda = ?", pda).
		Update("is_active", active)
	if res.Error != nil {
		return translateGormError(res.Error, "verifier")
	}
	if res.RowsAffected == 0 {
		return domain.Ef(domain.KindNotFound, "verifier %s not found", pda)
	}
	return nil
}

// ListVerifiers returns paginated verifiers matching the filter.
func (r *Repository) ListVerifiers(ctx context.Context, filter domain.VerifierFilter) (domain.VerifierListResult, error) {
	q := r.db.WithContext(ctx).Model(&verifierModel{})
	if filter.Active != nil {
		q = q.Where("is_active = ?", *filter.Active)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return domain.VerifierListResult{}, translateGormError(err, "verifier")
	}

	offset, limit := normalizePage(filter.Page, filter.Limit)
	var models []verifierModel
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return domain.VerifierListResult{}, translateGormError(err, "verifier")
	}

	out := domain.VerifierListResult{Total: total, Items: make([]domain.Verifier, 0, len(models))}
	for _, m := range models {
		out.Items = append(out.Items, m.toDomain())
	}
	return out, nil
}

// --- animals ---

// CreateAnimal inserts a mirror row for a confirmed animal account.
func (r *Repository) CreateAnimal(ctx context.Context, a domain.Animal) error {
	m := animalToModel(a)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translateGormError(err, "animal")
	}
	return nil
}

// GetAnimalByPDA loads an animal by its account address.
func (r *Repository) GetAnimalByPDA(ctx context.Context, pda string) (domain.Animal, error) {
	var m animalModel
	if err := r.db.WithContext(ctx).Where("pda = ?", pda).First(&m).Error; err != nil {
		return domain.Animal{}, translateGormError(err, "animal")
	}
	return m.toDomain(), nil
}

// UpdateAnimal overwrites the chain-derived fields of an animal row in one
// write.
func (r *Repository) UpdateAnimal(ctx context.Context, a domain.Animal) error {
	res := r.db.WithContext(ctx).Model(&animalModel{}).
		Where("pda = ?", a.PDA).
		Updates(map[string]any{
			"owner":             a.Owner,
			"is_verified":       a.IsVerified,
			"assigned_verifier": a.AssignedVerifier,
			"sale_price":        a.SalePrice,
			"last_sale_price":   a.LastSalePrice,
			"allowed_buyer":     a.AllowedBuyer,
		})
	if res.Error != nil {
		return translateGormError(res.Error, "animal")
	}
	if res.RowsAffected == 0 {
		return domain.Ef(domain.KindNotFound, "animal %s not found", a.PDA)
	}
	return nil
}

// DeleteAnimal removes the mirror row of a closed animal account.
func (r *Repository) DeleteAnimal(ctx context.Context, pda string) error {
	res := r.db.WithContext(ctx).Where("pda = ?", pda).Delete(&animalModel{})
	if res.Error != nil {
		return translateGormError(res.Error, "animal")
	}
	if res.RowsAffected == 0 {
		return domain.Ef(domain.KindNotFound, "animal %s not found", pda)
	}
	return nil
}

// ListAnimals returns paginated animals matching the filter.
func (r *Repository) ListAnimals(ctx context.Context, filter domain.AnimalFilter) (domain.AnimalListResult, error) {
	q := r.db.WithContext(ctx).Model(&animalModel{})
	if filter.Specie != "" {
		q = q.Where("specie = ?", filter.Specie)
	}
	if filter.Breed != "" {
		q = q.Where("breed = ?", filter.Breed)
	}
	if filter.RanchPDA != "" {
		q = q.Where("ranch_pda = ?", filter.RanchPDA)
	}
	if filter.Owner != "" {
		q = q.Where("owner = ?", filter.Owner)
	}
	if filter.OnSale != nil {
		if *filter.OnSale {
			q = q.Where("sale_price IS NOT NULL")
		} else {
			q = q.Where("sale_price IS NULL")
		}
	}
	if filter.MinPrice != nil {
		q = q.Where("sale_price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("sale_price <= ?", *filter.MaxPrice)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return domain.AnimalListResult{}, translateGormError(err, "animal")
	}

	offset, limit := normalizePage(filter.Page, filter.Limit)
	var models []animalModel
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return domain.AnimalListResult{}, translateGormError(err, "animal")
	}

	out := domain.AnimalListResult{Total: total, Items: make([]domain.Animal, 0, len(models))}
	for _, m := range models {
		out.Items = append(out.Items, m.toDomain())
	}
	return out, nil
}

// --- pending transactions ---

// CreatePending reserves a subject PDA for one in-flight operation. A second
// live row for the same PDA violates the partial unique index and surfaces as
// Conflict.
func (r *Repository) CreatePending(ctx context.Context, p domain.PendingTransaction) error {
	m := pendingToModel(p)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Ef(domain.KindConflict, "an operation for %s is already in flight", p.AnimalPDA)
		}
		return translateGormError(err, "pending transaction")
	}
	return nil
}

// GetPending loads a pending transaction by id.
func (r *Repository) GetPending(ctx context.Context, id string) (domain.PendingTransaction, error) {
	var m pendingTransactionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.PendingTransaction{}, translateGormError(err, "pending transaction")
	}
	return m.toDomain(), nil
}

// GetLivePendingByAnimalPDA loads the non-archived pending row for a subject,
// if any.
func (r *Repository) GetLivePendingByAnimalPDA(ctx context.Context, pda string) (domain.PendingTransaction, error) {
	var m pendingTransactionModel
	err := r.db.WithContext(ctx).
		Where("animal_pda = ? AND archived_at IS NULL", pda).
		First(&m).Error
	if err != nil {
		return domain.PendingTransaction{}, translateGormError(err, "pending transaction")
	}
	return m.toDomain(), nil
}

// UpdatePending persists the payload and status of a pending row as
// signatures accumulate.
func (r *Repository) UpdatePending(ctx context.Context, p domain.PendingTransaction) error {
	res := r.db.WithContext(ctx).Model(&pendingTransactionModel{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"serialized_tx": p.SerializedTx,
			"status":        string(p.Status),
			"error_message": p.ErrorMessage,
			"tx_signature":  p.TxSignature,
		})
	if res.Error != nil {
		return translateGormError(res.Error, "pending transaction")
	}
	if res.RowsAffected == 0 {
		return domain.Ef(domain.KindNotFound, "pending transaction %s not found", p.ID)
	}
	return nil
}

// ArchivePending moves a pending row to a terminal status and out of the
// live-uniqueness window, freeing the subject for a new attempt.
func (r *Repository) ArchivePending(ctx context.Context, id string, status domain.TxStatus, errorMessage, txSignature string) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&pendingTransactionModel{}).
		Where("id = ? AND archived_at IS NULL", id).
		Updates(map[string]any{
			"status":        string(status),
			"error_message": errorMessage,
			"tx_signature":  txSignature,
			"archived_at":   &now,
		})
	if res.Error != nil {
		return translateGormError(res.Error, "pending transaction")
	}
	if res.RowsAffected == 0 {
		return domain.Ef(domain.KindNotFound, "pending transaction %s not found or already archived", id)
	}
	return nil
}

// ListPendings returns paginated pending transactions matching the filter.
func (r *Repository) ListPendings(ctx context.Context, filter domain.PendingFilter) (domain.PendingListResult, error) {
	q := r.db.WithContext(ctx).Model(&pendingTransactionModel{})
	if filter.VerifierPubkey != "" {
		q = q.Where("verifier_pubkey = ?", filter.VerifierPubkey)
	}
	if filter.RancherPubkey != "" {
		q = q.Where("rancher_pubkey = ?", filter.RancherPubkey)
	}
	if filter.Status != "" {
		q = q.Where("status = ? AND archived_at IS NULL", string(filter.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return domain.PendingListResult{}, translateGormError(err, "pending transaction")
	}

	offset, limit := normalizePage(filter.Page, filter.Limit)
	var models []pendingTransactionModel
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return domain.PendingListResult{}, translateGormError(err, "pending transaction")
	}

	out := domain.PendingListResult{Total: total, Items: make([]domain.PendingTransaction, 0, len(models))}
	for _, m := range models {
		out.Items = append(out.Items, m.toDomain())
	}
	return out, nil
}
