package attendance

import (
	"sync"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Entry: セッションログ1行分（識別子 + スキャン時刻）
type Entry struct {
	Identifier string
	ScannedAt  time.Time
}

// Ledger: スキャン済み識別子集合とセッションログを1つのロックで保護する。
// 集合とログは Reset で同時に空になり、途中状態は外から見えない。
type Ledger struct {
	mu      sync.RWMutex
	seen    map[string]struct{}
	entries []Entry
}

func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Append: ログへ1行足すだけの基本操作（集合は触らない）。
// スキャン時は重複判定と集合への追加を同じロックで行う Record を使う
func (l *Ledger) Append(identifier string, at time.Time) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Identifier: identifier, ScannedAt: at})
	l.mu.Unlock()
}

// Record: 未スキャンなら集合へ追加してログに追記し true。既にあれば何もせず false。
func (l *Ledger) Record(identifier string, at time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[identifier]; ok {
		return false
	}
	l.seen[identifier] = struct{}{}
	l.entries = append(l.entries, Entry{Identifier: identifier, ScannedAt: at})
	return true
}

func (l *Ledger) Seen(identifier string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[identifier]
	return ok
}

// Entries: 追記順のコピー
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) Reset() {
	l.mu.Lock()
	l.seen = make(map[string]struct{})
	l.entries = nil
	l.mu.Unlock()
}
