package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// lockArena 帳戶 ID -> 鎖的索引 (handle)
//
// 鎖以 capacity 1 的 channel 實作，才能搭配 select 做有上限的等待。
// slot 建立後不會移除，handle 在 ledger 生命週期內固定。
type lockArena struct {
	mu    sync.Mutex
	index map[string]int
	slots []chan struct{}
}

func newLockArena() *lockArena {
	return &lockArena{
		index: make(map[string]int),
	}
}

// register 為帳戶配置鎖，重複呼叫回傳同一個 handle
func (a *lockArena) register(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if h, ok := a.index[id]; ok {
		return h
	}
	a.slots = append(a.slots, make(chan struct{}, 1))
	h := len(a.slots) - 1
	a.index[id] = h
	return h
}

// handles 依 ids 順序取得 handle，任何一個不存在即回傳 ErrAccountNotFound
func (a *lockArena) handles(ids []string) ([]chan struct{}, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]chan struct{}, 0, len(ids))
	for _, id := range ids {
		h, ok := a.index[id]
		if !ok {
			return nil, domain.ErrAccountNotFound
		}
		out = append(out, a.slots[h])
	}
	return out, nil
}

// acquire 依序取得所有鎖，整體等待時間上限為 timeout
// 失敗時已取得的鎖會全部釋放
func acquire(ctx context.Context, slots []chan struct{}, timeout time.Duration) (release func(), err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	held := 0
	release = func() {
		for i := held - 1; i >= 0; i-- {
			<-slots[i]
		}
	}

	for _, slot := range slots {
		select {
		case slot <- struct{}{}:
			held++
		case <-timer.C:
			release()
			return nil, domain.ErrLockTimeout
		case <-ctx.Done():
			release()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %w", domain.ErrLockTimeout, ctx.Err())
			}
			return nil, ctx.Err()
		}
	}
	return release, nil
}
