package entity

import (
	"fmt"
	"sort"
	"sync"
)

// registry はエンティティ型名からフィールドディスクリプタ集合へのプロセス全体のマッピング。
// 起動時の明示的なRegister呼び出しでのみ構築され、以降は読み取り専用となる。
// 型宣言に伴う暗黙の登録は行わない（決定的な起動順序を保つため）。
var registry = struct {
	mu    sync.RWMutex
	types map[string]map[string]Field
}{
	types: make(map[string]map[string]Field),
}

// Register はエンティティ型のフィールドディスクリプタ集合を登録する。
// 各エンティティ型につき起動時に1回だけ呼び出すこと。
// Columnが未設定のディスクリプタには属性名が補完される。
// 二重登録、および宣言型を満たさないデフォルト値はプログラミングエラーとしてpanicする。
func Register(typeName string, fields map[string]Field) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.types[typeName]; exists {
		panic(fmt.Sprintf("entity: 型 %s は登録済みです", typeName))
	}

	registered := make(map[string]Field, len(fields))
	for attr, f := range fields {
		if f.Column == "" {
			f.Column = attr
		}
		if f.Default != nil {
			if _, err := f.normalize(attr, f.Default); err != nil {
				panic(fmt.Sprintf("entity: 型 %s の属性 %s のデフォルト値が宣言型 %s を満たしていません", typeName, attr, f.Kind))
			}
		}
		registered[attr] = f
	}

	registry.types[typeName] = registered
}

// Attributes は登録済み属性名をソート済みで返す。
// 未登録の型には空のスライスを返す。
func Attributes(typeName string) []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	fields, ok := registry.types[typeName]
	if !ok {
		return []string{}
	}
	attrs := make([]string, 0, len(fields))
	for attr := range fields {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	return attrs
}

// Columns は属性名からカラム名へのマッピングを返す。
// 未登録の型には空のマップを返す。
func Columns(typeName string) map[string]string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	fields, ok := registry.types[typeName]
	if !ok {
		return map[string]string{}
	}
	mapping := make(map[string]string, len(fields))
	for attr, f := range fields {
		mapping[attr] = f.Column
	}
	return mapping
}

// fieldsOf は型のディスクリプタ集合を返す。
func fieldsOf(typeName string) (map[string]Field, bool) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	fields, ok := registry.types[typeName]
	return fields, ok
}
