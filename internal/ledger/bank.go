package ledger

import (
	"sync"

	"github.com/forgecredit/forgecredit/internal/apperror"
)

// Bank moves value between accounts. The settlement ledger treats a transfer
// as synchronous external I/O: its success is known before the operation
// proceeds, and a failure aborts the whole operation.
type Bank interface {
	BalanceOf(account string) int64
	Transfer(from, to string, amount int64) error
}

// MemoryBank is the in-process Bank used by the server and by tests.
// Accounts are created implicitly with a zero balance.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[string]int64
}

var _ Bank = (*MemoryBank)(nil)

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[string]int64)}
}

// Mint credits an account out of thin air. Used to seed balances.
func (b *MemoryBank) Mint(account string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] += amount
}

func (b *MemoryBank) BalanceOf(account string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account]
}

func (b *MemoryBank) Transfer(from, to string, amount int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount < 0 {
		return apperror.TransferFailed("negative transfer amount")
	}
	if b.balances[from] < amount {
		return apperror.TransferFailed("insufficient balance")
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}
