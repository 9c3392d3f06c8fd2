package config

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strings"
)

// Flags is an immutable snapshot of the feature toggles read by the
// dispatcher, the validators and the bootstrap coordinator. New snapshots are
// produced with WithOverrides or Migrate; a snapshot is never changed in place.
type Flags struct {
	VerboseLogs              bool   `flag:"VerboseLogs"`
	GlobalNetworkAccount     bool   `flag:"GlobalNetworkAccount"`
	SetupGenesisAccount      bool   `flag:"SetupGenesisAccount"`
	ForwardGenesisAccounts   bool   `flag:"forwardGenesisAccounts"`
	DebugRestoreFile         string `flag:"DebugRestoreFile"`
	DebugRestoreArchiveBatch int    `flag:"DebugRestoreArchiveBatch"`
	DevPublicKey             string `flag:"devPublicKey"`
	TxNoncePreCheck          bool   `flag:"txNoncePreCheck"`
	TxBalancePreCheck        bool   `flag:"txBalancePreCheck"`
	ChargeConstantTxFee      bool   `flag:"chargeConstantTxFee"`
	ConstantTxFeeUsd         string `flag:"constantTxFeeUsd"`
	FixExtraStakeLessThanMin bool   `flag:"fixExtraStakeLessThanMin"`
	AllowForceUnstake        bool   `flag:"allowForceUnstake"`
	TxHashingFix             bool   `flag:"txHashingFix"`
	ChainID                  uint64 `flag:"ChainID"`
	AppDataCacheSize         int    `flag:"appDataCacheSize"`
}

// DefaultFlags returns the flag values a fresh node starts with.
func DefaultFlags() Flags {
	return Flags{
		GlobalNetworkAccount:     true,
		SetupGenesisAccount:      true,
		ForwardGenesisAccounts:   true,
		DebugRestoreArchiveBatch: 2000,
		TxNoncePreCheck:          true,
		TxBalancePreCheck:        true,
		ChargeConstantTxFee:      false,
		ConstantTxFeeUsd:         "10000000000000000",
		FixExtraStakeLessThanMin: true,
		AllowForceUnstake:        true,
		TxHashingFix:             true,
		ChainID:                  8082,
		AppDataCacheSize:         1000,
	}
}

// ConstantTxFee returns ConstantTxFeeUsd as an integer. Unparseable values
// yield zero.
func (f Flags) ConstantTxFee() *big.Int {
	value, ok := new(big.Int).SetString(strings.TrimSpace(f.ConstantTxFeeUsd), 10)
	if !ok {
		return big.NewInt(0)
	}
	return value
}

// FlagNames lists every overridable flag key in sorted order.
func FlagNames() []string {
	t := reflect.TypeOf(Flags{})
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		names = append(names, t.Field(i).Tag.Get("flag"))
	}
	sort.Strings(names)
	return names
}

// WithOverrides returns a copy of f with the supplied values applied. Keys
// match the flag name exactly or the Go field name case-insensitively. An
// unknown key or a value of the wrong type fails the whole update and f is
// returned unchanged.
func (f Flags) WithOverrides(overrides map[string]any) (Flags, error) {
	next := f
	v := reflect.ValueOf(&next).Elem()
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		field, ok := lookupFlagField(v, key)
		if !ok {
			return f, fmt.Errorf("flags: unknown flag %q", key)
		}
		if err := assignFlag(field, overrides[key]); err != nil {
			return f, fmt.Errorf("flags: %s: %w", key, err)
		}
	}
	return next, nil
}

// ParseOverrides decodes a JSON object of flag overrides, as carried by a
// configuration-change transaction.
func ParseOverrides(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var overrides map[string]any
	if err := dec.Decode(&overrides); err != nil {
		return nil, fmt.Errorf("flags: decode overrides: %w", err)
	}
	return overrides, nil
}

func lookupFlagField(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Tag.Get("flag") == key || strings.EqualFold(sf.Name, key) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func assignFlag(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(s)
	case reflect.Int:
		n, err := integerValue(value)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint64:
		n, err := integerValue(value)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("expected non-negative integer, got %d", n)
		}
		field.SetUint(uint64(n))
	default:
		return fmt.Errorf("unsupported flag kind %s", field.Kind())
	}
	return nil
}

func integerValue(value any) (int64, error) {
	switch n := value.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}
