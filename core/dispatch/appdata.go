package dispatch

import (
	"math/big"
	"sync"

	"github.com/chrischabot/shardeum/core/types"
)

// AppData is the auxiliary sender state the host attaches to an EVM
// transaction before validation. Every field is optional.
type AppData struct {
	Balance    *big.Int `json:"balance"`
	Nonce      uint64   `json:"nonce"`
	QueueCount uint64   `json:"queueCount"`

	InternalTXType *types.InternalTxType `json:"internalTXType,omitempty"`
	Stake          *types.StakeCoins     `json:"stake,omitempty"`
	Unstake        *types.UnstakeCoins   `json:"unstake,omitempty"`

	NetworkAccount   *types.NetworkAccount `json:"networkAccount,omitempty"`
	NominatorAccount *types.UserAccount    `json:"nominatorAccount,omitempty"`
	NomineeAccount   *types.NodeAccount    `json:"nomineeAccount,omitempty"`
}

func (a *AppData) isStake() bool {
	return a != nil && a.Stake != nil && a.InternalTXType != nil && *a.InternalTXType == types.InternalStake
}

func (a *AppData) isUnstake() bool {
	return a != nil && a.Unstake != nil && a.InternalTXType != nil && *a.InternalTXType == types.InternalUnstake
}

// appDataCache remembers the app data last seen per transaction hash. It is
// cleared wholesale once it grows past its limit.
type appDataCache struct {
	mu    sync.Mutex
	limit int
	items map[string]*AppData
}

func newAppDataCache(limit int) *appDataCache {
	if limit <= 0 {
		limit = 1000
	}
	return &appDataCache{limit: limit, items: make(map[string]*AppData)}
}

// put stores data under hash and reports whether the cache was reset first.
func (c *appDataCache) put(hash string, data *AppData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	reset := false
	if len(c.items) > c.limit {
		c.items = make(map[string]*AppData)
		reset = true
	}
	c.items[hash] = data
	return reset
}

func (c *appDataCache) get(hash string) (*AppData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[hash]
	return data, ok
}

func (c *appDataCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
