package database

import (
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quantumchem/quantumchem-backend/internal/domain"
	"github.com/quantumchem/quantumchem-backend/internal/security"
)

func openSeedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSeedCreatesDemoAccountOnce(t *testing.T) {
	db := openSeedTestDB(t)

	if err := Seed(db, "Demo@QuantumChem.app", "Demo", "Demo1234"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var user domain.User
	if err := db.Where("email = ?", "demo@quantumchem.app").First(&user).Error; err != nil {
		t.Fatalf("load seeded user: %v", err)
	}
	if !user.IsEmailVerified || user.AuthProvider != domain.AuthProviderManual {
		t.Fatalf("unexpected seeded user: %+v", user)
	}
	if user.PasswordExpiresAt != nil {
		t.Fatal("seed passwords must not expire")
	}
	ok, err := security.VerifyPassword(*user.PasswordHash, "Demo1234")
	if err != nil || !ok {
		t.Fatalf("seed password must verify: ok=%v err=%v", ok, err)
	}

	// Running again is a no-op, not a duplicate.
	if err := Seed(db, "demo@quantumchem.app", "Demo", "Other999"); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	var count int64
	db.Model(&domain.User{}).Count(&count)
	if count != 1 {
		t.Fatalf("user count = %d, want 1", count)
	}
}

func TestSeedRejectsMissingFields(t *testing.T) {
	db := openSeedTestDB(t)
	if err := Seed(db, "", "Demo", "Demo1234"); err == nil {
		t.Fatal("empty email must error")
	}
	if err := Seed(db, "demo@quantumchem.app", "Demo", ""); err == nil {
		t.Fatal("empty password must error")
	}
}

func TestPromotePending(t *testing.T) {
	db := openSeedTestDB(t)

	pending := domain.PendingVerification{
		Name:      "Waiting",
		Email:     "waiting@example.com",
		Token:     "tok-waiting",
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}
	if err := db.Create(&pending).Error; err != nil {
		t.Fatalf("seed pending: %v", err)
	}

	password, err := PromotePending(db, "Waiting@Example.com", 96*time.Hour)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if len(password) != 8 {
		t.Fatalf("temp password length = %d", len(password))
	}

	var user domain.User
	if err := db.Where("email = ?", "waiting@example.com").First(&user).Error; err != nil {
		t.Fatalf("load promoted user: %v", err)
	}
	if !user.IsEmailVerified || user.PasswordExpiresAt == nil {
		t.Fatalf("unexpected promoted user: %+v", user)
	}
	ok, err := security.VerifyPassword(*user.PasswordHash, password)
	if err != nil || !ok {
		t.Fatalf("returned password must verify: ok=%v err=%v", ok, err)
	}

	var pendingCount int64
	db.Model(&domain.PendingVerification{}).Count(&pendingCount)
	if pendingCount != 0 {
		t.Fatal("pending row must be consumed")
	}

	if _, err := PromotePending(db, "waiting@example.com", 96*time.Hour); err == nil {
		t.Fatal("promoting twice must fail once the row is consumed")
	}
}
