package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/auth"
	"github.com/MrJamesThe3rd/labelhub/internal/config"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
	"github.com/MrJamesThe3rd/labelhub/internal/store/memory"
)

func setEnv(t *testing.T) {
	t.Helper()

	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("DB_DRIVER", config.DriverMemory)
}

func memoryOpener(backend *memory.Store) opener {
	return func(context.Context, *config.Config) (*env, error) {
		return newEnv(backend), nil
	}
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(open)

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestUserCreateAndCredit(t *testing.T) {
	setEnv(t)

	backend := memory.New()
	open := memoryOpener(backend)

	out, err := execute(t, open, "user", "create", "Ops@Example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "ops@example.com")

	users, err := backend.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	id := users[0].ID.String()

	out, err = execute(t, open, "credit", "adjust", id, "5.00", "--top-up", "-r", "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "balance 5.00\n", out)

	out, err = execute(t, open, "credit", "adjust", id, "5.00", "--top-up", "-r", "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "reference already applied, balance 5.00\n", out)

	out, err = execute(t, open, "credit", "adjust", "-n", "goodwill reversal", "--", id, "-1.25")
	require.NoError(t, err)
	assert.Equal(t, "balance 3.75\n", out)

	_, err = execute(t, open, "credit", "adjust", "--", id, "-10")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	out, err = execute(t, open, "reconcile", "--user", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "3.75")
	assert.Contains(t, out, "ok")

	out, err = execute(t, open, "user", "history", id, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1.25")
	assert.NotContains(t, out, "pay_1")
}

func TestArgumentErrors(t *testing.T) {
	setEnv(t)

	open := memoryOpener(memory.New())

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "Bad user id", args: []string{"credit", "adjust", "nope", "1"}, wantErr: "invalid user id"},
		{name: "Bad amount", args: []string{"credit", "adjust", uuid.NewString(), "ten"}, wantErr: "invalid amount"},
		{name: "Missing args", args: []string{"credit", "adjust"}, wantErr: "accepts 2 arg(s)"},
		{name: "Unknown user", args: []string{"reconcile", "-u", uuid.NewString()}, wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, open, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTokenCmd(t *testing.T) {
	setEnv(t)

	id := uuid.New()

	out, err := execute(t, memoryOpener(memory.New()), "token", id.String(), "--admin", "--ttl", "1m")
	require.NoError(t, err)

	who, err := auth.New("cli-secret", time.Minute).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, actor.Admin(id), who)
}

func TestOpenPostgres_RejectsOtherDrivers(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = config.DriverMemory

	_, err := openPostgres(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DRIVER=postgres")
}
