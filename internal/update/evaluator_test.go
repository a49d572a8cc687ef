package update

import (
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Nika0000/publisher-cli/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Version{}, &models.Build{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func publishVersion(t *testing.T, db *gorm.DB, name, channel string, mutate func(*models.Version)) *models.Version {
	t.Helper()
	pct := 100
	v := &models.Version{
		VersionName:       name,
		ReleaseChannel:    channel,
		IsPublished:       true,
		ManifestVersion:   1,
		RolloutPercentage: &pct,
	}
	if mutate != nil {
		mutate(v)
	}
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create version %s: %v", name, err)
	}
	return v
}

func giveBuild(t *testing.T, db *gorm.DB, v *models.Version, os, arch, typ string) *models.Build {
	t.Helper()
	b := &models.Build{
		VersionID: v.ID, OS: os, Arch: arch, Type: typ,
		Distribution: "direct", Variant: "default",
		URL: "https://cdn/" + v.VersionName, SHA256: "cafe",
	}
	if err := db.Create(b).Error; err != nil {
		t.Fatalf("create build: %v", err)
	}
	return b
}

func check(t *testing.T, db *gorm.DB, p Params) *Result {
	t.Helper()
	res, err := CheckForUpdate(db, p, time.Now().UTC())
	if err != nil {
		t.Fatalf("CheckForUpdate: %v", err)
	}
	return res
}

func TestCheckSkipsVersionLackingCompatibleBuild(t *testing.T) {
	db := testDB(t)
	publishVersion(t, db, "1.2.0", "stable", nil) // no builds at all
	v11 := publishVersion(t, db, "1.1.0", "stable", nil)
	giveBuild(t, db, v11, "macos", "arm64", "installer")
	v09 := publishVersion(t, db, "0.9.0", "stable", nil)
	giveBuild(t, db, v09, "macos", "arm64", "installer")

	res := check(t, db, Params{InstalledVersion: "1.0.0", OS: "macos", Arch: "arm64", Channel: "stable"})
	if !res.Available {
		t.Fatal("expected an update")
	}
	if res.Version != "1.1.0" {
		t.Errorf("target = %q, want 1.1.0 (1.2.0 has no build, 0.9.0 is older)", res.Version)
	}
}

func TestCheckNoUpdateWhenCurrent(t *testing.T) {
	db := testDB(t)
	v := publishVersion(t, db, "1.0.0", "stable", nil)
	giveBuild(t, db, v, "macos", "arm64", "installer")

	res := check(t, db, Params{InstalledVersion: "1.0.0", OS: "macos", Arch: "arm64", Channel: "stable"})
	if res.Available {
		t.Errorf("same version must not be an update: %+v", res)
	}
}

func TestCheckPrereleaseGate(t *testing.T) {
	db := testDB(t)
	v := publishVersion(t, db, "2.0.0-beta.1", "beta", nil)
	giveBuild(t, db, v, "linux", "x64", "installer")

	p := Params{InstalledVersion: "1.9.0", OS: "linux", Arch: "x64", Channel: "beta"}
	if res := check(t, db, p); res.Available {
		t.Error("prerelease offered without allowPrerelease")
	}
	p.AllowPrerelease = true
	if res := check(t, db, p); !res.Available || res.Version != "2.0.0-beta.1" {
		t.Errorf("allowPrerelease: got %+v", res)
	}
}

func TestCheckRolloutWindow(t *testing.T) {
	db := testDB(t)
	future := time.Now().UTC().Add(24 * time.Hour)
	v := publishVersion(t, db, "1.1.0", "stable", func(v *models.Version) {
		v.RolloutStartAt = &future
	})
	giveBuild(t, db, v, "windows", "x64", "installer")

	res := check(t, db, Params{InstalledVersion: "1.0.0", OS: "windows", Arch: "x64", Channel: "stable"})
	if res.Available {
		t.Error("update offered before its rollout window opened")
	}
}

func TestCheckRolloutPercentage(t *testing.T) {
	db := testDB(t)
	pct := 50
	v := publishVersion(t, db, "1.1.0", "stable", func(v *models.Version) {
		v.RolloutPercentage = &pct
	})
	giveBuild(t, db, v, "windows", "x64", "installer")

	// no device id during a partial rollout: excluded
	res := check(t, db, Params{InstalledVersion: "1.0.0", OS: "windows", Arch: "x64", Channel: "stable"})
	if res.Available {
		t.Error("partial rollout must exclude clients without a device id")
	}

	// "abc" buckets at 54, outside a 50% rollout
	res = check(t, db, Params{InstalledVersion: "1.0.0", OS: "windows", Arch: "x64", Channel: "stable", DeviceID: "abc"})
	if res.Available {
		t.Error("device outside the bucket was offered the update")
	}
	pct = 55
	if err := db.Save(v).Error; err != nil {
		t.Fatalf("widen rollout: %v", err)
	}
	res = check(t, db, Params{InstalledVersion: "1.0.0", OS: "windows", Arch: "x64", Channel: "stable", DeviceID: "abc"})
	if !res.Available {
		t.Error("device inside the widened bucket was not offered the update")
	}
}

func TestCheckMandatoryMinVersionOverride(t *testing.T) {
	db := testDB(t)
	min := "1.0.0"
	v := publishVersion(t, db, "1.1.0", "stable", func(v *models.Version) {
		v.IsMandatory = false
		v.MinSupportedVersion = &min
	})
	giveBuild(t, db, v, "macos", "arm64", "installer")

	res := check(t, db, Params{InstalledVersion: "0.9.0", OS: "macos", Arch: "arm64", Channel: "stable"})
	if !res.Available {
		t.Fatal("expected an update")
	}
	if !res.Mandatory {
		t.Error("installed below minSupportedVersion must force mandatory")
	}

	res = check(t, db, Params{InstalledVersion: "1.0.5", OS: "macos", Arch: "arm64", Channel: "stable"})
	if !res.Available || res.Mandatory {
		t.Errorf("installed above min: %+v", res)
	}
}

func TestCheckBuildRankingPrefersPatchThenStore(t *testing.T) {
	db := testDB(t)
	v := publishVersion(t, db, "1.1.0", "stable", nil)
	giveBuild(t, db, v, "macos", "arm64", "installer")
	patch := &models.Build{
		VersionID: v.ID, OS: "macos", Arch: "arm64", Type: "patch",
		Distribution: "direct", Variant: "default", URL: "https://cdn/patch",
	}
	if err := db.Create(patch).Error; err != nil {
		t.Fatalf("create patch: %v", err)
	}

	res := check(t, db, Params{InstalledVersion: "1.0.0", OS: "macos", Arch: "arm64", Channel: "stable"})
	if res.Build == nil || res.Build.URL != "https://cdn/patch" {
		t.Errorf("selected build = %+v, want the patch", res.Build)
	}

	db2 := testDB(t)
	v2 := publishVersion(t, db2, "1.1.0", "stable", nil)
	giveBuild(t, db2, v2, "ios", "arm64", "installer")
	storeBuild := &models.Build{
		VersionID: v2.ID, OS: "ios", Arch: "arm64", Type: "installer",
		Distribution: "store", Variant: "default", URL: "https://store/app",
		PlatformMetadata: datatypes.JSONMap{"external": true},
	}
	if err := db2.Create(storeBuild).Error; err != nil {
		t.Fatalf("create store build: %v", err)
	}
	res = check(t, db2, Params{InstalledVersion: "1.0.0", OS: "ios", Arch: "arm64", Channel: "stable"})
	if res.Build == nil || res.Build.URL != "https://store/app" {
		t.Errorf("selected build = %+v, want the store listing", res.Build)
	}
}

func TestCheckIgnoresUnpublished(t *testing.T) {
	db := testDB(t)
	pct := 100
	v := &models.Version{VersionName: "2.0.0", ReleaseChannel: "stable", IsPublished: false, RolloutPercentage: &pct, ManifestVersion: 1}
	if err := db.Create(v).Error; err != nil {
		t.Fatal(err)
	}
	giveBuild(t, db, v, "macos", "arm64", "installer")

	res := check(t, db, Params{InstalledVersion: "1.0.0", OS: "macos", Arch: "arm64", Channel: "stable"})
	if res.Available {
		t.Error("unpublished version offered as update")
	}
}

func TestCheckCallerErrors(t *testing.T) {
	db := testDB(t)
	cases := []Params{
		{InstalledVersion: "not-semver", OS: "macos", Arch: "arm64", Channel: "stable"},
		{InstalledVersion: "1.0.0", OS: "solaris", Arch: "arm64", Channel: "stable"},
		{InstalledVersion: "1.0.0", OS: "macos", Arch: "mips", Channel: "stable"},
		{InstalledVersion: "1.0.0", OS: "macos", Arch: "arm64", Channel: "nightly"},
	}
	for _, p := range cases {
		if _, err := CheckForUpdate(db, p, time.Now()); !errors.Is(err, models.ErrUnsupported) {
			t.Errorf("params %+v: err = %v, want ErrUnsupported", p, err)
		}
	}
}

func TestCheckSurfacesBuildQueryFailure(t *testing.T) {
	db := testDB(t)
	v := publishVersion(t, db, "1.1.0", "stable", nil)
	giveBuild(t, db, v, "macos", "arm64", "installer")

	if err := db.Migrator().DropTable(&models.Build{}); err != nil {
		t.Fatalf("drop builds table: %v", err)
	}
	res, err := CheckForUpdate(db, Params{
		InstalledVersion: "1.0.0", OS: "macos", Arch: "arm64", Channel: "stable",
	}, time.Now())
	if err == nil {
		t.Fatalf("store failure reported as a result: %+v", res)
	}
}
