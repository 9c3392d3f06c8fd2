package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithOverridesReturnsNewSnapshot(t *testing.T) {
	base := DefaultFlags()
	next, err := base.WithOverrides(map[string]any{
		"allowForceUnstake":        false,
		"DebugRestoreArchiveBatch": int64(50),
		"devpublickey":             "abc",
		"ChainID":                  json.Number("7"),
	})
	require.NoError(t, err)
	require.True(t, base.AllowForceUnstake)
	require.False(t, next.AllowForceUnstake)
	require.Equal(t, 50, next.DebugRestoreArchiveBatch)
	require.Equal(t, "abc", next.DevPublicKey)
	require.Equal(t, uint64(7), next.ChainID)
}

func TestWithOverridesRejectsUnknownAndMistyped(t *testing.T) {
	base := DefaultFlags()
	_, err := base.WithOverrides(map[string]any{"noSuchFlag": true})
	require.Error(t, err)

	got, err := base.WithOverrides(map[string]any{"txNoncePreCheck": false, "ChainID": "8082"})
	require.Error(t, err)
	require.Equal(t, base, got)

	_, err = base.WithOverrides(map[string]any{"ChainID": 1.5})
	require.Error(t, err)
}

func TestParseOverrides(t *testing.T) {
	overrides, err := ParseOverrides(`{"txBalancePreCheck": false, "appDataCacheSize": 10}`)
	require.NoError(t, err)
	next, err := DefaultFlags().WithOverrides(overrides)
	require.NoError(t, err)
	require.False(t, next.TxBalancePreCheck)
	require.Equal(t, 10, next.AppDataCacheSize)

	_, err = ParseOverrides("not json")
	require.Error(t, err)
}

func TestMigrate(t *testing.T) {
	old := Flags{ChargeConstantTxFee: true}

	got := Migrate(old, "1.1.2")
	require.Equal(t, old, got)

	got = Migrate(old, "1.1.3")
	require.True(t, got.FixExtraStakeLessThanMin)
	require.True(t, got.AllowForceUnstake)
	require.True(t, got.TxHashingFix)
	require.True(t, got.ChargeConstantTxFee)

	got = Migrate(old, "v1.9.1")
	require.True(t, got.ChargeConstantTxFee)
	require.True(t, got.TxHashingFix)

	require.Equal(t, old, Migrate(old, "latest"))
}

func TestConstantTxFee(t *testing.T) {
	require.Equal(t, "10000000000000000", DefaultFlags().ConstantTxFee().String())
	require.Equal(t, int64(0), Flags{ConstantTxFeeUsd: "x"}.ConstantTxFee().Int64())
	require.Contains(t, FlagNames(), "txHashingFix")
}
