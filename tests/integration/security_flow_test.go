package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/sentinel/internal/models"
)

func setupDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Teardown(context.Background())
	})

	return db
}

func TestLedgerAppendAndHistory(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	attemptRepo, _, _ := InitializeRepositories(db.DB)
	accountID := uuid.New()

	country := "DE"
	stored, err := attemptRepo.Append(ctx, &models.LoginAttempt{
		AccountID:         accountID,
		IPAddress:         "203.0.113.10",
		Country:           &country,
		Browser:           "Chrome",
		OS:                "macOS",
		DeviceClass:       "desktop",
		DeviceFingerprint: "fp-ledger-test-0123456789abcdef",
		RiskScore:         42,
		Status:            models.LoginStatusSuccess,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	attempts, err := attemptRepo.ListRecent(ctx, accountID, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, stored.ID, attempts[0].ID)
	assert.Equal(t, 42, attempts[0].RiskScore)
}

func TestLedgerCountryAggregates(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	attemptRepo, _, _ := InitializeRepositories(db.DB)
	accountID := uuid.New()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		_, err := SeedAttempt(ctx, db.Pool, accountID, now.Add(-time.Duration(i)*time.Hour), models.LoginStatusSuccess, "DE", 10, false)
		require.NoError(t, err)
	}
	_, err := SeedAttempt(ctx, db.Pool, accountID, now.Add(-4*time.Hour), models.LoginStatusSuccess, "FR", 10, false)
	require.NoError(t, err)

	home, err := attemptRepo.HomeCountry(ctx, accountID, 30)
	require.NoError(t, err)
	assert.Equal(t, "DE", home)

	known, err := attemptRepo.KnownCountries(ctx, accountID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"DE", "FR"}, known)
}

func TestDailyRiskAveragesCapsAtRequestedDays(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	attemptRepo, _, _ := InitializeRepositories(db.DB)
	accountID := uuid.New()
	now := time.Now().UTC()

	// One attempt on each of the last 8 calendar days. Asking for a 6-day
	// trend must never surface the older days, regardless of the time of day
	// the query runs.
	for i := 0; i < 8; i++ {
		_, err := SeedAttempt(ctx, db.Pool, accountID, now.AddDate(0, 0, -i), models.LoginStatusSuccess, "DE", 10*(i+1), false)
		require.NoError(t, err)
	}

	points, err := attemptRepo.DailyRiskAverages(ctx, accountID, 6, "UTC")
	require.NoError(t, err)
	require.Len(t, points, 6)

	// Oldest first, and nothing before the 6-day window.
	oldestAllowed := now.Truncate(24 * time.Hour).AddDate(0, 0, -5)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].Day.After(points[i-1].Day))
	}
	assert.False(t, points[0].Day.Before(oldestAllowed))
}

func TestTrustedDeviceUpsertAdvancesLastUsed(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, deviceRepo, _ := InitializeRepositories(db.DB)
	accountID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	name := "Chrome on macOS"
	first, err := deviceRepo.Upsert(ctx, &models.TrustedDevice{
		AccountID:         accountID,
		DeviceFingerprint: "fp-upsert-test-0123456789abcdef",
		DisplayName:       &name,
		LastUsedAt:        now,
	})
	require.NoError(t, err)

	// A later use advances last_used_at; an out-of-order earlier one does not.
	later, err := deviceRepo.Upsert(ctx, &models.TrustedDevice{
		AccountID:         accountID,
		DeviceFingerprint: "fp-upsert-test-0123456789abcdef",
		LastUsedAt:        now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, later.ID)
	assert.True(t, later.LastUsedAt.After(first.LastUsedAt))

	earlier, err := deviceRepo.Upsert(ctx, &models.TrustedDevice{
		AccountID:         accountID,
		DeviceFingerprint: "fp-upsert-test-0123456789abcdef",
		LastUsedAt:        now.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, later.LastUsedAt, earlier.LastUsedAt)
	require.NotNil(t, earlier.DisplayName)
	assert.Equal(t, name, *earlier.DisplayName)
}

func TestAlertDedupUnderConcurrentTriggers(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, _, alertRepo := InitializeRepositories(db.DB)
	accountID := uuid.New()

	alert := func() *models.SecurityAlert {
		return &models.SecurityAlert{
			AccountID: accountID,
			AlertType: models.AlertTypeRiskyLogin,
			Severity:  models.SeverityMedium,
			Message:   "Login flagged as risky (risk score 80)",
			DedupKey:  accountID.String() + "|risky_login|12345",
		}
	}

	first, created, err := alertRepo.CreateIfAbsent(ctx, alert())
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := alertRepo.CreateIfAbsent(ctx, alert())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	alerts, err := alertRepo.List(ctx, accountID, false, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestStaleUntrustedDevicePruning(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, deviceRepo, _ := InitializeRepositories(db.DB)
	accountID := uuid.New()
	now := time.Now().UTC()

	_, err := SeedTrustedDevice(ctx, db.Pool, accountID, "fp-stale-untrusted-0123456789abc", false, now.Add(-120*24*time.Hour))
	require.NoError(t, err)
	_, err = SeedTrustedDevice(ctx, db.Pool, accountID, "fp-stale-trusted-0123456789abcde", true, now.Add(-120*24*time.Hour))
	require.NoError(t, err)
	_, err = SeedTrustedDevice(ctx, db.Pool, accountID, "fp-fresh-untrusted-0123456789abc", false, now)
	require.NoError(t, err)

	removed, err := deviceRepo.DeleteStaleUntrusted(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// Trusted devices survive no matter how stale.
	trusted, err := deviceRepo.ListTrusted(ctx, accountID)
	require.NoError(t, err)
	assert.Len(t, trusted, 1)
}
