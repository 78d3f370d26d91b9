package main

import (
	"context"
	"flag"
	"path/filepath"
	"testing"
	"time"

	"spend-ledger-go/internal/database"
	"spend-ledger-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestValidators(t *testing.T) {
	assert.NoError(t, validateEmail("ada@example.com"))
	assert.Error(t, validateEmail(""))
	assert.Error(t, validateEmail("ada@"))

	assert.NoError(t, validateName("Ada"))
	assert.Error(t, validateName("A"))

	assert.NoError(t, validateTimezone(""))
	assert.NoError(t, validateTimezone("Africa/Lagos"))
	assert.Error(t, validateTimezone("Lagos"))
}

func TestParseAmount(t *testing.T) {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String(fAmount, "", "")
	require.NoError(t, set.Parse([]string{"--amount", "1500.25"}))
	c := cli.NewContext(nil, set, nil)

	amount, err := parseAmount(c, fAmount)
	require.NoError(t, err)
	assert.Equal(t, "1500.25", amount.String())

	require.NoError(t, set.Set(fAmount, "lots"))
	_, err = parseAmount(c, fAmount)
	assert.ErrorContains(t, err, "--amount")
}

func TestCommandsAgainstFreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	t.Setenv("DATABASE_PATH", path)
	t.Setenv("FORMANCE_STACK_URL", "")
	t.Setenv("THRESHOLDS_FILE", "")
	t.Setenv("CREATE_DUMMY_USERS", "false")
	t.Setenv("DEFAULT_TIMEZONE", "UTC")

	run := func(args ...string) error {
		return newApp().Run(append([]string{"ledgerctl"}, args...))
	}

	require.NoError(t, run("add-user", "--name", "Ada Obi", "--email", "ada@example.com",
		"--customer", "cus_cli", "--timezone", "Africa/Lagos"))
	require.NoError(t, run("create-limit", "--customer", "cus_cli", "--usd", "2", "--rate", "500", "--order", "order-cli"))
	require.NoError(t, run("spend", "--customer", "cus_cli", "--amount", "100", "--authorization", "auth-cli"))
	require.NoError(t, run("spend", "--customer", "cus_cli", "--amount", "100", "--authorization", "auth-cli"))
	require.NoError(t, run("balance", "--customer", "cus_cli"))
	require.NoError(t, run("tank", "--customer", "cus_cli"))
	require.NoError(t, run("history", "--customer", "cus_cli"))
	require.NoError(t, run("users"))
	require.NoError(t, run("add-address", "--customer", "cus_cli", "--address", "0xC11"))
	require.NoError(t, run("addresses"))

	assert.Error(t, run("spend", "--customer", "cus_cli", "--amount", "5000"))
	assert.Error(t, run("balance"))
	assert.Error(t, run("release"))

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         path,
		MaxOpenConns: 1,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	defer db.Close()

	user, err := db.FindUserByCustomerId(context.Background(), "cus_cli")
	require.NoError(t, err)
	limits, err := db.ListSpendingLimits(context.Background(), user.Id)
	require.NoError(t, err)
	require.Len(t, limits, 1)
	assert.Equal(t, "900", limits[0].NairaRemaining.String())
}
