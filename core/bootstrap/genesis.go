package bootstrap

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/chrischabot/shardeum/config"
)

// GenesisAccount is one pre-funded address.
type GenesisAccount struct {
	Address common.Address
	Balance *big.Int
}

type genesisEntry struct {
	Wei json.Number `json:"wei" yaml:"wei"`
}

// DefaultGenesisBalance is the balance given to genesis accounts that name
// no amount: 100 * 10^18 in debug mode, zero otherwise.
func DefaultGenesisBalance(mode config.Mode) *big.Int {
	if mode != config.ModeDebug {
		return new(big.Int)
	}
	return new(big.Int).Mul(big.NewInt(100), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// LoadGenesis reads an address -> {wei} map. Files ending in .yaml or .yml
// are decoded as YAML, everything else as JSON. Accounts are returned in
// address order.
func LoadGenesis(path string, mode config.Mode) ([]GenesisAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: read genesis %s: %w", path, err)
	}
	entries := make(map[string]genesisEntry)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &entries)
	default:
		err = json.Unmarshal(raw, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("bootstrap: decode genesis %s: %w", path, err)
	}
	return parseGenesis(entries, mode)
}

func parseGenesis(entries map[string]genesisEntry, mode config.Mode) ([]GenesisAccount, error) {
	accounts := make([]GenesisAccount, 0, len(entries))
	for addr, entry := range entries {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("bootstrap: invalid genesis address %q", addr)
		}
		balance := DefaultGenesisBalance(mode)
		if wei := strings.TrimSpace(entry.Wei.String()); wei != "" {
			parsed, ok := new(big.Int).SetString(wei, 10)
			if !ok || parsed.Sign() < 0 {
				return nil, fmt.Errorf("bootstrap: invalid wei amount %q for %s", wei, addr)
			}
			balance = parsed
		}
		accounts = append(accounts, GenesisAccount{Address: common.HexToAddress(addr), Balance: balance})
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Address.Cmp(accounts[j].Address) < 0
	})
	return accounts, nil
}
