package cache

import (
	"log/slog"
	"sync"
	"time"
)

// entry はキャッシュされた1件の検索結果を保持する。
// 挿入後は変更されない（replace-on-write）。
// OwnerIDはキーにも含まれるが、所有者単位の一括無効化を
// 高速にするため冗長に保持する。
type entry struct {
	value     interface{}
	ownerID   string
	expiresAt time.Time
}

// Store は検索結果のプロセス内キャッシュ。
// 複数リクエストからの並行アクセスに対して安全。
// プロセスをまたぐ一貫性は提供しない: 複数インスタンス構成では
// 各インスタンスが独立したキャッシュを持ち、無効化は変更を処理した
// インスタンスに閉じる（既知の制限であり、仕様上許容される）。
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	sweepInterval time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewStore は新しいStoreを生成し、バックグラウンドの定期スイープを開始する。
// プロセス起動時に1回だけ構築し、ハンドラーに注入して使う。
func NewStore(sweepInterval time.Duration) *Store {
	s := &Store{
		entries:       make(map[string]*entry),
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// Stop はスイープのバックグラウンドゴルーチンを停止する。
func (s *Store) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Get はキーに対応する有効なエントリの値を返す。
// 存在しない、またはTTL超過のエントリはミスとして扱い、
// 期限切れエントリはその場で削除する。
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		// 再取得して同じエントリであることを確認してから削除
		if cur, ok := s.entries[key]; ok && cur == e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

// Put は検索結果をTTL付きで格納する。
// 同一キーへの再格納は新しいエントリで置き換える（エントリ自体は変更しない）。
func (s *Store) Put(key, ownerID string, value interface{}, ttl time.Duration) {
	e := &entry{
		value:     value,
		ownerID:   ownerID,
		expiresAt: time.Now().Add(ttl),
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// InvalidateOwner は指定所有者のエントリをすべて削除し、削除件数を返す。
// 支出の作成・更新・削除が成功した直後、レスポンス構築前に同期的に
// 呼び出すこと。これにより同一プロセス内のread-after-write一貫性を保証する。
// 該当エントリがない場合は何もしない。
func (s *Store) InvalidateOwner(ownerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if e.ownerID == ownerID {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Sweep はTTLを超過した全エントリを削除し、削除件数を返す。
// アクセスの有無に関わらずメモリ使用量を抑えるため、
// バックグラウンドループからも定期的に呼ばれる。
func (s *Store) Sweep() int {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len は現在のエントリ数を返す。テストおよびメトリクス用。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// sweepLoop はバックグラウンドで定期的に期限切れエントリを削除する。
func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				slog.Debug("cache sweep completed",
					slog.Int("removed", removed),
				)
			}
		case <-s.stopCh:
			return
		}
	}
}
