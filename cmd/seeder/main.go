package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"rankstream/internal/config"
	"rankstream/internal/models"
	"rankstream/internal/period"
	"rankstream/internal/repository"
	"rankstream/internal/store"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	TotalUsers   = 10000
	BatchSize    = 500
	MinPoints    = 100
	MaxPoints    = 5000
	UserIDPrefix = "user_"
)

func main() {
	log.Println("Starting rankstream seeder...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := initPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")

	postgresRepo := repository.NewPostgresRepository(db)
	scoreStore := store.NewRedisStore(redisClient, store.TTLs{
		Weekly:  cfg.Engine.WeeklyTTL,
		Monthly: cfg.Engine.MonthlyTTL,
	})

	if err := postgresRepo.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	ctx := context.Background()

	log.Printf("Generating %d users...", TotalUsers)
	users := generateUsers(TotalUsers)

	log.Println("Inserting users into PostgreSQL...")
	if err := seedPostgres(ctx, postgresRepo, users); err != nil {
		log.Fatalf("Failed to seed PostgreSQL: %v", err)
	}

	log.Println("Populating all-time leaderboard window...")
	if err := seedStore(ctx, scoreStore, users); err != nil {
		log.Fatalf("Failed to seed Redis: %v", err)
	}

	total, err := scoreStore.Size(ctx, period.AllTime, period.AllTimeKey)
	if err != nil {
		log.Fatalf("Failed to verify Redis: %v", err)
	}

	log.Printf("Seeding completed: PostgreSQL %d users, Redis %d members", TotalUsers, total)

	log.Println("Top 10 users:")
	top, err := scoreStore.Range(ctx, period.AllTime, period.AllTimeKey, 0, 9)
	if err != nil {
		log.Fatalf("Failed to read top users: %v", err)
	}
	for i, member := range top {
		log.Printf("   %d. %s - %d points", i+1, member.UserID, member.Score)
	}

	postgresRepo.Close()
	scoreStore.Close()

	log.Println("Seeder finished")
}

// generateUsers creates random users with totals between MinPoints and MaxPoints
func generateUsers(count int) []models.User {
	users := make([]models.User, count)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for i := 0; i < count; i++ {
		points := int64(rng.Intn(MaxPoints-MinPoints+1) + MinPoints)

		users[i] = models.User{
			UserID:      fmt.Sprintf("%s%d", UserIDPrefix, i+1),
			DisplayName: fmt.Sprintf("Player %d", i+1),
			TotalPoints: points,
		}
	}

	return users
}

// seedPostgres inserts users into PostgreSQL in batches
func seedPostgres(ctx context.Context, repo *repository.PostgresRepository, users []models.User) error {
	startTime := time.Now()

	if err := repo.BulkInsertUsers(ctx, users, BatchSize); err != nil {
		return fmt.Errorf("bulk insert failed: %w", err)
	}

	duration := time.Since(startTime)
	log.Printf("   Inserted %d users in %v (%.0f users/sec)",
		len(users), duration, float64(len(users))/duration.Seconds())

	return nil
}

// seedStore populates the all-time window. Weekly and monthly windows are
// left empty so they only accumulate real awards.
func seedStore(ctx context.Context, st store.ScoreStore, users []models.User) error {
	startTime := time.Now()

	members := make(map[string]int64, len(users))
	for _, user := range users {
		members[user.UserID] = user.TotalPoints
	}

	if err := st.Seed(ctx, period.AllTime, period.AllTimeKey, members); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	duration := time.Since(startTime)
	log.Printf("   Populated Redis with %d members in %v (%.0f members/sec)",
		len(users), duration, float64(len(users))/duration.Seconds())

	return nil
}

// initPostgres initializes PostgreSQL connection
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}
