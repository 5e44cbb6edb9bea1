package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stupiduntilnot/pharmassist/internal/db"
	"github.com/stupiduntilnot/pharmassist/internal/model"
	"github.com/stupiduntilnot/pharmassist/internal/store"
)

const fixtureYAML = `
pharmacies:
  A: {name: Alpha Pharmacy, address: 1 Main, verified: true, lat: 0, lon: 0}
  B: {name: Beta Pharmacy, location: {latitude: 0, longitude: 0.1, address: 2 Side}}
products:
  p1: {name: Paracetamol, price: 3.5, pharmacyId: A, category: pain}
  p2: {name: Ibuprofen, price: 4.25, pharmacyId: B, category: pain}
users:
  u1: {name: Ana, lat: 0, lon: 0}
carts:
  u1: {items: [{productId: p2, quantity: 2}]}
`

func writeFixtures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixtureYAML), 0o600))
	return path
}

// setEnv points the CLI at a fresh database with offline collaborators.
func setEnv(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pharmassist.db")
	for k, v := range map[string]string{
		"PHARMASSIST_CONFIG":              "",
		"PHARMASSIST_PROVIDER":            "dummy",
		"PHARMASSIST_DUMMY_SCRIPT":        "echo",
		"PHARMASSIST_STORE":               "sqlite",
		"PHARMASSIST_DB_PATH":             dbPath,
		"PHARMASSIST_NOTIFY":              "dummy",
		"PHARMASSIST_DUMMY_NOTIFY_SCRIPT": "ok",
		"PHARMASSIST_LOG_LEVEL":           "error",
		"PHARMASSIST_HISTORY_WINDOW":      "",
		"OPENAI_API_KEY":                  "",
	} {
		t.Setenv(k, v)
	}
	return dbPath
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_SeedChatHistoryEvents(t *testing.T) {
	setEnv(t)
	fixtures := writeFixtures(t)

	out, err := execute(t, "", "seed", fixtures)
	require.NoError(t, err)
	assert.Contains(t, out, "pharmacies: 2")
	assert.Contains(t, out, "products: 2")

	out, err = execute(t, "", "chat", "-u", "u1", "is", "Paracetamol", "in", "stock?")
	require.NoError(t, err)
	assert.Contains(t, out, "is [Paracetamol](/product/p1) in stock?")

	out, err = execute(t, "first\n\nsecond\n", "chat", "--user", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")

	out, err = execute(t, "", "history", "-u", "u1", "-n", "0")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "user: is Paracetamol in stock?")
	assert.Contains(t, lines[5], "assistant: second")

	out, err = execute(t, "", "events", "--no-payload")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "["), out)
	assert.Contains(t, out, db.EventProcessStarted)
	assert.Equal(t, 2, strings.Count(out, db.EventTurnStarted))
	assert.Contains(t, out, "│   ├── ")
	assert.Contains(t, out, db.EventReplyPersisted)
}

func TestCLI_ChatConfigurationError(t *testing.T) {
	setEnv(t)
	t.Setenv("PHARMASSIST_PROVIDER", "openai")

	_, err := execute(t, "", "chat", "-u", "u1", "hi")
	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Setting)
}

func TestCLI_ChatProviderFailurePrintsApology(t *testing.T) {
	setEnv(t)
	t.Setenv("PHARMASSIST_DUMMY_SCRIPT", "err:provider_api")

	out, err := execute(t, "", "chat", "-u", "u1", "hi")
	require.NoError(t, err)
	assert.Contains(t, out, "Sorry, I couldn't answer that right now.")
	assert.NotContains(t, out, "provider_api")
}

func TestLoadFixtures(t *testing.T) {
	fx, err := loadFixtures(writeFixtures(t))
	require.NoError(t, err)
	assert.Len(t, fx["pharmacies"], 2)
	assert.Equal(t, "Paracetamol", fx["products"]["p1"]["name"])

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"widgets": {"w1": {"name": "x"}}}`), 0o600))
	_, err = loadFixtures(bad)
	assert.ErrorContains(t, err, `unknown collection "widgets"`)
}

func seededStore(t *testing.T) *store.SQLite {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "search.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	fx, err := loadFixtures(writeFixtures(t))
	require.NoError(t, err)
	counts, err := seed(context.Background(), st, fx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["carts"])
	return st
}

func TestRunSearch_Products(t *testing.T) {
	st := seededStore(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runSearch(ctx, st, "products", "para", searchOptions{limit: 10}, &out))
	assert.Contains(t, out.String(), "exact")
	assert.Contains(t, out.String(), "/product/p1")
	assert.NotContains(t, out.String(), "Ibuprofen")

	out.Reset()
	require.NoError(t, runSearch(ctx, st, "products", "paracetamol tablets", searchOptions{limit: 10}, &out))
	assert.Contains(t, out.String(), "0.80")

	out.Reset()
	require.NoError(t, runSearch(ctx, st, "products", "zzz", searchOptions{limit: 10}, &out))
	assert.Equal(t, "no products found\n", out.String())

	assert.Error(t, runSearch(ctx, st, "widgets", "x", searchOptions{}, &out))
}

func TestRunSearch_PharmaciesNear(t *testing.T) {
	st := seededStore(t)

	var out bytes.Buffer
	opts := searchOptions{lat: 0, lon: 0.1, near: true, mode: "walking", limit: 10}
	require.NoError(t, runSearch(context.Background(), st, "pharmacies", "pharmacy", opts, &out))
	s := out.String()
	assert.Contains(t, s, "11.1 km")
	assert.Contains(t, s, "/vendor/B")
	assert.Contains(t, s, "closest: Beta Pharmacy (0.0 km")
	assert.Contains(t, s, "walking")

	out.Reset()
	opts.near = false
	require.NoError(t, runSearch(context.Background(), st, "pharmacies", "alpha", opts, &out))
	assert.NotContains(t, out.String(), "closest")
}

// seedEventTree inserts a session with two turns and returns the root id.
func seedEventTree(t *testing.T, database *sql.DB) int64 {
	t.Helper()
	root, _ := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{"backend": "dummy", "pid": 100})
	turn1, _ := db.LogEvent(database, &root, db.EventTurnStarted, map[string]any{"user_id": "u1"})
	db.LogEvent(database, &turn1, db.EventContextAssembled, map[string]any{"products": 2, "failures": 0})
	db.LogEvent(database, &turn1, db.EventReplyPersisted, nil)
	turn2, _ := db.LogEvent(database, &root, db.EventTurnStarted, map[string]any{"user_id": "u1"})
	db.LogEvent(database, &turn2, db.EventProviderFailed, map[string]any{"latency_ms": 12.5})
	return root
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(database))
	t.Cleanup(func() { database.Close() })
	return database
}

func TestRunEvents_Tree(t *testing.T) {
	database := testDB(t)
	seedEventTree(t, database)

	var out bytes.Buffer
	require.NoError(t, runEvents(database, eventsOptions{latest: db.EventProcessStarted}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)
	assert.Contains(t, lines[0], "process.started  backend=dummy  pid=100")
	assert.True(t, strings.HasPrefix(lines[1], "├── "), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "│   ├── "), lines[2])
	assert.Contains(t, lines[2], "failures=0  products=2")
	assert.True(t, strings.HasPrefix(lines[4], "└── "), lines[4])
	assert.Contains(t, lines[5], "latency_ms=12.5")
}

func TestRunEvents_DepthLimitAndID(t *testing.T) {
	database := testDB(t)
	seedEventTree(t, database)

	var out bytes.Buffer
	require.NoError(t, runEvents(database, eventsOptions{latest: db.EventProcessStarted, maxDepth: 2, noPayload: true}, &out))
	assert.Equal(t, 2, strings.Count(out.String(), "[...]"))
	assert.NotContains(t, out.String(), "user_id")

	out.Reset()
	require.NoError(t, runEvents(database, eventsOptions{latest: db.EventTurnStarted}, &out))
	assert.True(t, strings.Contains(out.String(), db.EventProviderFailed))
	assert.NotContains(t, out.String(), db.EventProcessStarted)

	assert.Error(t, runEvents(database, eventsOptions{eventID: 999}, &out))
	assert.Error(t, runEvents(testDB(t), eventsOptions{latest: db.EventProcessStarted}, &out))
}

func TestRunEvents_JSON(t *testing.T) {
	database := testDB(t)
	root := seedEventTree(t, database)

	var out bytes.Buffer
	require.NoError(t, runEvents(database, eventsOptions{eventID: root, jsonOut: true, maxDepth: 2}, &out))
	var je jsonEvent
	require.NoError(t, json.Unmarshal(out.Bytes(), &je))
	assert.Equal(t, db.EventProcessStarted, je.EventType)
	require.Len(t, je.Children, 2)
	assert.Empty(t, je.Children[0].Children)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "42", formatValue(42.0))
	assert.Equal(t, "1.5", formatValue(1.5))
	assert.Equal(t, "true", formatValue(true))
	long := strings.Repeat("x", 100)
	assert.Equal(t, `"`+strings.Repeat("x", 80)+`..."`, formatValue(long))
}
