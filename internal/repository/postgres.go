package repository

import (
	"context"
	"fmt"

	"rankstream/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresRepository handles all PostgreSQL operations: the authoritative
// user records (display name, cumulative total) and the durable leaderboard
// snapshots used for recovery and audit.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a new Postgres repository
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// AddPoints bumps a user's authoritative cumulative total.
func (r *PostgresRepository) AddPoints(ctx context.Context, userID string, points int64) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("user_id = ?", userID).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", points)).Error
}

// GetUser retrieves a user by their opaque id
func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// GetDisplayNames resolves display names for a batch of user ids. Unknown
// ids are simply absent from the result; callers skip those entries.
func (r *PostgresRepository) GetDisplayNames(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return map[string]string{}, nil
	}

	var users []models.User
	err := r.db.WithContext(ctx).
		Select("user_id", "display_name").
		Where("user_id IN ?", userIDs).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.UserID] = u.DisplayName
	}
	return names, nil
}

// GetAllUsers retrieves all users ordered by cumulative total (used by the
// startup rebuild and the seeder).
func (r *PostgresRepository) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("total_points DESC").Find(&users).Error
	return users, err
}

// BulkInsertUsers efficiently inserts multiple users
func (r *PostgresRepository) BulkInsertUsers(ctx context.Context, users []models.User, batchSize int) error {
	return r.db.WithContext(ctx).CreateInBatches(users, batchSize).Error
}

// UpsertSnapshot writes one durable leaderboard row, overwriting any
// existing row for the same (user_id, period_type, period_key).
func (r *PostgresRepository) UpsertSnapshot(ctx context.Context, rec models.SnapshotRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "period_type"},
			{Name: "period_key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"score", "rank", "updated_at"}),
	}).Create(&rec).Error
}

// GetSnapshots returns the durable rows of one window, best score first.
func (r *PostgresRepository) GetSnapshots(ctx context.Context, periodType, periodKey string) ([]models.SnapshotRecord, error) {
	var records []models.SnapshotRecord
	err := r.db.WithContext(ctx).
		Where("period_type = ? AND period_key = ?", periodType, periodKey).
		Order("score DESC").
		Find(&records).Error
	return records, err
}

// GetTotalUsers returns the total count of users
func (r *PostgresRepository) GetTotalUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

// Ping checks if database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func (r *PostgresRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.User{}, &models.SnapshotRecord{})
}
