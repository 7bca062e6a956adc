package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kickoffclub/hq-backend/pkg/migrate"
)

func TestCouponMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_coupons.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no coupons migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE coupons",
		"CREATE UNIQUE INDEX uq_coupons_code ON coupons (code)",
		"CHECK (max_redemptions IS NULL OR current_redemptions <= max_redemptions)",
		"PRIMARY KEY (user_id, coupon_id)",
		"DROP TABLE coupon_redemptions",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}
