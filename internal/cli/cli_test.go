package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/pkg/auth"
	"github.com/pedroasavelar91/nexus-familiar/pkg/config"
)

var (
	march     = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	jwtConfig = config.JWTConfig{Secret: "cli-test-secret", Issuer: "nexus-familiar", ExpirationMinutes: 60}
)

type result struct {
	code   int
	stdout string
	stderr string
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *ResponseError  `json:"error"`
}

func (r result) decode(t *testing.T, into any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &env), r.stdout)
	require.Equal(t, "ok", env.Status, r.stdout)
	require.NoError(t, json.Unmarshal(env.Data, into))
}

type cliHarness struct {
	store *remote.Memory
}

func newCLIHarness() *cliHarness {
	return &cliHarness{store: remote.NewMemory().WithClock(func() time.Time { return march })}
}

func (h *cliHarness) run(t *testing.T, token string, args ...string) result {
	t.Helper()
	cmd := newRootCommand(func(context.Context, *RootOptions) (remote.Store, error) {
		return h.store, nil
	}, func() time.Time { return march })

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	code := execute(cmd, append([]string{"--token", token}, args...), &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func mint(t *testing.T, name, email string) (string, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	token, err := auth.MintAccessToken(jwtConfig, march, auth.AccessTokenPayload{UserID: id, Email: email, Name: name})
	require.NoError(t, err)
	return token, id
}

func TestMembershipLifecycle(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")
	bob, _ := mint(t, "Bob", "bob@example.com")

	res := h.run(t, alice, "status")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "status: no_family")

	var family struct {
		ID         uuid.UUID `json:"id"`
		Name       string    `json:"name"`
		InviteCode string    `json:"invite_code"`
	}
	res = h.run(t, alice, "--format", "json", "family", "create", "Silva")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	res.decode(t, &family)
	assert.Equal(t, "Silva", family.Name)
	require.Len(t, family.InviteCode, 6)

	var found struct {
		ID uuid.UUID `json:"id"`
	}
	res = h.run(t, bob, "--format", "json", "family", "find", family.InviteCode)
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	res.decode(t, &found)
	assert.Equal(t, family.ID, found.ID)

	res = h.run(t, bob, "family", "join", found.ID.String())
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "an admin must approve it")

	res = h.run(t, bob, "status")
	assert.Contains(t, res.stdout, "status: pending_approval")

	var status statusView
	res = h.run(t, alice, "--format", "json", "status")
	res.decode(t, &status)
	require.Len(t, status.PendingRequests, 1)
	assert.Equal(t, "Bob", status.PendingRequests[0].UserName)

	res = h.run(t, alice, "requests", "approve", status.PendingRequests[0].ID.String())
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Bob joined as member")

	res = h.run(t, bob, "status")
	assert.Contains(t, res.stdout, "family: Silva")
	assert.Contains(t, res.stdout, "(you)")
}

func TestRequestsApproveRequiresAdmin(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")
	bob, _ := mint(t, "Bob", "bob@example.com")

	var family struct {
		ID uuid.UUID `json:"id"`
	}
	h.run(t, alice, "--format", "json", "family", "create", "Silva").decode(t, &family)

	var req struct {
		ID uuid.UUID `json:"id"`
	}
	h.run(t, bob, "--format", "json", "family", "join", family.ID.String()).decode(t, &req)

	res := h.run(t, bob, "requests", "approve", req.ID.String())
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [")
}

func TestMembersAddPet(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")
	require.Equal(t, ExitSuccess, h.run(t, alice, "family", "create", "Silva").code)

	res := h.run(t, alice, "members", "add", "Rex", "--role", "pet")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "added Rex")
	assert.Contains(t, res.stdout, "as pet")

	res = h.run(t, alice, "status")
	assert.Contains(t, res.stdout, "Rex")
}

func TestTasksCommands(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")
	require.Equal(t, ExitSuccess, h.run(t, alice, "family", "create", "Silva").code)

	var task struct {
		ID       uuid.UUID `json:"id"`
		Title    string    `json:"title"`
		Priority string    `json:"priority"`
	}
	res := h.run(t, alice, "--format", "json", "tasks", "add", "Take out the trash", "--due", "2026-03-01", "--priority", "high")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	res.decode(t, &task)
	assert.Equal(t, "high", task.Priority)

	res = h.run(t, alice, "tasks", "list")
	assert.Contains(t, res.stdout, "Take out the trash")
	assert.Contains(t, res.stdout, "2026-03-01 (overdue)")

	res = h.run(t, alice, "tasks", "toggle", task.ID.String())
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "completed Take out the trash")

	res = h.run(t, alice, "tasks", "list", "--pending")
	assert.Contains(t, res.stdout, "no tasks")

	res = h.run(t, alice, "--format", "json", "tasks", "clear")
	var cleared map[string]int
	res.decode(t, &cleared)
	assert.Equal(t, 1, cleared["deleted"])
	assert.Empty(t, h.store.Rows(remote.TableTasks))
}

func TestTasksAddRejectsBadDueDate(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")
	require.Equal(t, ExitSuccess, h.run(t, alice, "family", "create", "Silva").code)

	res := h.run(t, alice, "tasks", "add", "Groceries", "--due", "03/01/2026")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "VALIDATION_ERROR")
}

func TestShoppingImportFromPantry(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")

	var family struct {
		ID uuid.UUID `json:"id"`
	}
	h.run(t, alice, "--format", "json", "family", "create", "Silva").decode(t, &family)
	require.NoError(t, h.store.Seed(remote.TablePantryItems,
		remote.Row{"family_id": family.ID.String(), "name": "Rice", "quantity": "1", "min_quantity": "3", "unit": "kg"},
		remote.Row{"family_id": family.ID.String(), "name": "Salt", "quantity": "2", "min_quantity": "1", "unit": "pack"},
	))

	var added []struct {
		Name     string `json:"name"`
		Quantity string `json:"quantity"`
	}
	res := h.run(t, alice, "--format", "json", "shopping", "import")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	res.decode(t, &added)
	require.Len(t, added, 1)
	assert.Equal(t, "Rice", added[0].Name)
	assert.Equal(t, "2", added[0].Quantity)

	res = h.run(t, alice, "shopping", "import")
	assert.Contains(t, res.stdout, "nothing to add")

	res = h.run(t, alice, "shopping", "list")
	assert.Contains(t, res.stdout, "Rice")
}

func TestHouseholdCommandsRequireFamily(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")

	res := h.run(t, alice, "tasks", "list")
	assert.Equal(t, ExitFailure, res.code)
	assert.Contains(t, res.stderr, "Error [STATE_CONFLICT]: not a member of any family")
}

func TestMissingTokenIsCommandError(t *testing.T) {
	h := newCLIHarness()

	res := h.run(t, "", "status")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "missing --token")
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")

	res := h.run(t, alice, "--format", "yaml", "status")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, `invalid format "yaml"`)
}

func TestUsageErrorIsCommandError(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")

	res := h.run(t, alice, "family", "join")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "accepts 1 arg(s)")
}

func TestJSONErrorEnvelope(t *testing.T) {
	h := newCLIHarness()
	alice, _ := mint(t, "Alice", "alice@example.com")

	res := h.run(t, alice, "--format", "json", "family", "find", "ZZZZZZ")
	assert.Equal(t, ExitFailure, res.code)

	var env envelope
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &env))
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestTokenMint(t *testing.T) {
	h := newCLIHarness()
	userID := uuid.New()

	var minted mintedToken
	res := h.run(t, "", "--format", "json", "token", "mint",
		"--user-id", userID.String(), "--email", "carol@example.com", "--name", "Carol",
		"--secret", "mint-secret", "--issuer", "nexus-test", "--ttl", "30m")
	require.Equal(t, ExitSuccess, res.code, res.stdout)
	res.decode(t, &minted)
	assert.Equal(t, userID, minted.UserID)
	assert.Equal(t, march.Add(30*time.Minute), minted.ExpiresAt)

	claims, err := auth.ParseUnverified(minted.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "Carol", claims.Name)
	assert.Equal(t, "nexus-test", claims.Issuer)
}

func TestTokenMintRejectsBadUserID(t *testing.T) {
	h := newCLIHarness()

	res := h.run(t, "", "token", "mint", "--user-id", "nope", "--secret", "s")
	assert.Equal(t, ExitCommandError, res.code)
	assert.Contains(t, res.stderr, "invalid user id")
}

func TestPushgatewayReceivesSyncMetrics(t *testing.T) {
	h := newCLIHarness()
	alice, aliceID := mint(t, "Alice", "alice@example.com")
	require.Equal(t, ExitSuccess, h.run(t, alice, "family", "create", "Silva").code)

	var (
		mu    sync.Mutex
		paths []string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer gateway.Close()

	res := h.run(t, alice, "--pushgateway", gateway.URL, "tasks", "list")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	assert.Equal(t, "POST /metrics/job/household/user_id/"+aliceID.String(), paths[0])
}
