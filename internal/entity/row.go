package entity

import (
	"reflect"
	"time"
)

// AdaptRow はストレージエンジンの結果行をエンティティ構築に適した
// プレーンなマッピングに変換する。
// マップ型カラムはmap[string]anyに変換され、その内部のタイムスタンプには
// UTCオフセットが補完される。トップレベルのタイムスタンプの正規化は
// フィールドディスクリプタ側で行うため、ここでは手を加えない。
func AdaptRow(raw map[string]any) map[string]any {
	adapted := make(map[string]any, len(raw))
	for name, value := range raw {
		if m, ok := adaptMapValue(value); ok {
			adapted[name] = m
			continue
		}
		adapted[name] = value
	}
	return adapted
}

// adaptMapValue はマップ様の値をmap[string]anyに変換する。
// 変換中、UTCオフセットの明示がないタイムスタンプ値にはUTCを付与する。
// 文字列キーのマップ以外はfalseを返す。
func adaptMapValue(v any) (map[string]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, isTime := v.(time.Time); isTime {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		value := iter.Value().Interface()
		if t, ok := value.(time.Time); ok {
			value = NormalizeTimestamp(t)
		}
		m[iter.Key().String()] = value
	}
	return m, true
}
