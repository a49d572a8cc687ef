package manifest

import (
	"testing"
	"time"

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

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func addVersion(t *testing.T, db *gorm.DB, name, channel string, published bool) *models.Version {
	t.Helper()
	v := &models.Version{VersionName: name, ReleaseChannel: channel, IsPublished: published, ManifestVersion: 1}
	mustCreate(t, db, v)
	return v
}

func addBuild(t *testing.T, db *gorm.DB, v *models.Version, os, arch, typ, dist string, created time.Time) *models.Build {
	t.Helper()
	b := &models.Build{
		VersionID: v.ID, OS: os, Arch: arch, Type: typ, Distribution: dist,
		Variant: "default", URL: "https://cdn/" + v.VersionName + "/" + os + "-" + arch,
		SHA256: "deadbeef", CreatedAt: created,
	}
	mustCreate(t, db, b)
	return b
}

func TestBuildVersionManifestSingleBuildPerSlot(t *testing.T) {
	db := testDB(t)
	v := addVersion(t, db, "1.0.0", "stable", true)
	now := time.Now().UTC()
	addBuild(t, db, v, "macos", "arm64", "installer", "direct", now)
	addBuild(t, db, v, "macos", "x64", "installer", "direct", now)
	addBuild(t, db, v, "windows", "x64", "installer", "direct", now)

	m, err := BuildVersionManifest(db, "1.0.0", "stable")
	if err != nil {
		t.Fatalf("BuildVersionManifest: %v", err)
	}
	if m.Version != "1.0.0" || m.Channel != "stable" {
		t.Errorf("header = %s/%s", m.Channel, m.Version)
	}
	if len(m.Platforms) != 2 {
		t.Fatalf("platforms = %d, want 2", len(m.Platforms))
	}
	// canonical OS order: macos before windows
	if m.Platforms[0].OS != "macos" || m.Platforms[1].OS != "windows" {
		t.Errorf("platform order: %s, %s", m.Platforms[0].OS, m.Platforms[1].OS)
	}
	for _, p := range m.Platforms {
		for arch, types := range p.Builds {
			for typ, src := range types {
				if len(src.Sources) != 0 {
					t.Errorf("%s/%s/%s: unexpected alternatives %+v", p.OS, arch, typ, src.Sources)
				}
				if src.SourceVersion != "" {
					t.Errorf("%s/%s/%s: version manifest must not set sourceVersion", p.OS, arch, typ)
				}
			}
		}
	}
}

func TestBuildVersionManifestKeepsAlternatives(t *testing.T) {
	db := testDB(t)
	v := addVersion(t, db, "1.0.0", "stable", true)
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	addBuild(t, db, v, "ios", "arm64", "installer", "direct", t0.Add(time.Hour))
	addBuild(t, db, v, "ios", "arm64", "installer", "store", t0)

	m, err := BuildVersionManifest(db, "1.0.0", "stable")
	if err != nil {
		t.Fatalf("BuildVersionManifest: %v", err)
	}
	src := m.Platforms[0].Builds["arm64"]["installer"]
	if src.Distribution != "store" {
		t.Errorf("primary = %q, want store", src.Distribution)
	}
	if len(src.Sources) != 1 || src.Sources[0].Distribution != "direct" {
		t.Errorf("alternatives = %+v", src.Sources)
	}
}

func TestBuildVersionManifestUnknownVersion(t *testing.T) {
	db := testDB(t)
	if _, err := BuildVersionManifest(db, "9.9.9", "stable"); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestBuildLatestManifestSemverOrderNotTimestamps(t *testing.T) {
	db := testDB(t)
	// inserted out of order: 1.2.0 first, then 1.10.0 (newer semver,
	// older row)
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	v12 := addVersion(t, db, "1.2.0", "stable", true)
	v110 := addVersion(t, db, "1.10.0", "stable", true)
	addBuild(t, db, v12, "macos", "arm64", "installer", "direct", old.Add(time.Hour))
	addBuild(t, db, v110, "macos", "arm64", "installer", "direct", old)

	m, err := BuildLatestManifest(db, "stable")
	if err != nil {
		t.Fatalf("BuildLatestManifest: %v", err)
	}
	if m.Version != "1.10.0" {
		t.Errorf("top-level version = %q, want 1.10.0 (semver, not insert order)", m.Version)
	}
	src := m.Platforms[0].Builds["arm64"]["installer"]
	if src.SourceVersion != "1.10.0" {
		t.Errorf("sourceVersion = %q, want 1.10.0", src.SourceVersion)
	}
}

func TestBuildLatestManifestFillsGapsFromOlderVersions(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	v1 := addVersion(t, db, "1.0.0", "stable", true)
	v2 := addVersion(t, db, "2.0.0", "stable", true)
	addBuild(t, db, v1, "macos", "arm64", "installer", "direct", now)
	addBuild(t, db, v1, "linux", "x64", "installer", "direct", now)
	addBuild(t, db, v2, "macos", "arm64", "installer", "direct", now)

	m, err := BuildLatestManifest(db, "stable")
	if err != nil {
		t.Fatalf("BuildLatestManifest: %v", err)
	}
	got := map[string]string{}
	for _, p := range m.Platforms {
		for arch, types := range p.Builds {
			for typ, src := range types {
				got[p.OS+"/"+arch+"/"+typ] = src.SourceVersion
			}
		}
	}
	if got["macos/arm64/installer"] != "2.0.0" {
		t.Errorf("macos slot from %q, want 2.0.0", got["macos/arm64/installer"])
	}
	if got["linux/x64/installer"] != "1.0.0" {
		t.Errorf("linux slot from %q, want 1.0.0 (gap filled from older)", got["linux/x64/installer"])
	}
}

// A platform slot must never regress to an older version across
// repeated regenerations as new versions publish.
func TestBuildLatestManifestNeverRegresses(t *testing.T) {
	db := testDB(t)
	now := time.Now().UTC()
	v1 := addVersion(t, db, "1.0.0", "stable", true)
	addBuild(t, db, v1, "windows", "x64", "installer", "direct", now)

	m1, err := BuildLatestManifest(db, "stable")
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if m1.Platforms[0].Builds["x64"]["installer"].SourceVersion != "1.0.0" {
		t.Fatalf("unexpected initial slot: %+v", m1.Platforms[0].Builds)
	}

	// newer version supplies the slot; older build is newer on disk
	v2 := addVersion(t, db, "1.1.0", "stable", true)
	addBuild(t, db, v2, "windows", "x64", "installer", "direct", now.Add(-time.Hour))

	m2, err := BuildLatestManifest(db, "stable")
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if got := m2.Platforms[0].Builds["x64"]["installer"].SourceVersion; got != "1.1.0" {
		t.Errorf("slot regressed to %q after 1.1.0 published", got)
	}
}

func TestBuildLatestManifestEmptyChannel(t *testing.T) {
	db := testDB(t)
	if _, err := BuildLatestManifest(db, "alpha"); err == nil {
		t.Fatal("expected error for channel without published versions")
	}
}

func TestSortVersionsDescendingInvalidLast(t *testing.T) {
	versions := []models.Version{
		{VersionName: "not-a-version"},
		{VersionName: "1.0.0"},
		{VersionName: "2.0.0-beta.1"},
		{VersionName: "2.0.0"},
	}
	SortVersionsDescending(versions)
	want := []string{"2.0.0", "2.0.0-beta.1", "1.0.0", "not-a-version"}
	for i, w := range want {
		if versions[i].VersionName != w {
			t.Fatalf("order[%d] = %q, want %q", i, versions[i].VersionName, w)
		}
	}
}
