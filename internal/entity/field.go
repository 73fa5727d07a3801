// Package entity はカラムファミリーストア向けの軽量オブジェクトマッピング層を提供する。
// フィールドディスクリプタ、モデルレジストリ、汎用レコード、行アダプタを含む。
package entity

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// Kind はフィールドの宣言型を表すタグ。
// バリデーション・正規化・シリアライズはこのタグによるディスパッチで行う。
type Kind int

const (
	// KindBool は真偽値フィールド。
	KindBool Kind = iota
	// KindInt は整数フィールド。int / int64 を受け付け、int64 として保持する。
	KindInt
	// KindFloat は浮動小数点フィールド。
	KindFloat
	// KindString は文字列フィールド。
	KindString
	// KindTimestamp はタイムスタンプフィールド。
	// 明示的なUTCオフセットを持たない値（time.Localゾーン）は、
	// 壁時計をそのままUTCとして解釈し直して保持する。
	KindTimestamp
	// KindMap はマップフィールド。ストレージエンジン由来の型付きマップも受け付ける。
	// nil は空マップに正規化される。
	KindMap
	// KindSet はセットフィールド。正準形は map[string]struct{} で、
	// ストレージエンジン由来のスライス表現も受け付ける。nil は空セットに正規化される。
	KindSet
	// KindUUID はUUIDフィールド。uuid.UUID / gocql.UUID を受け付ける。
	KindUUID
	// KindJSON は任意のJSON構造を保持するフィールド。
	// 文字列はJSONとしてデコードされ、マップまたはリストでなければならない。
	KindJSON
	// KindWrappedJSON はJSONシリアライズ可能なラッパー型を保持するフィールド。
	// ラッパー型のインスタンス、またはWrapFromでデコード可能なJSON文字列を受け付ける。
	KindWrappedJSON
)

// String はKindの表示名を返す。バリデーションエラーのメッセージに使用する。
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindUUID:
		return "uuid"
	case KindJSON:
		return "json"
	case KindWrappedJSON:
		return "wrapped json"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// JSONWrapper はKindWrappedJSONフィールドに格納できる型が実装するインターフェース。
// 対になるデコード関数はField.WrapFromとして登録する。
type JSONWrapper interface {
	// ToJSON はオブジェクトをJSON文字列にシリアライズする。
	ToJSON() (string, error)
}

// Field は1つの属性を制御するフィールドディスクリプタ。
// カラム名・宣言型・デフォルト値、およびストレージ向け変換を定義する。
type Field struct {
	// Column はストレージ上のカラム名。空の場合は登録時に属性名で補完される。
	Column string
	// Kind は宣言型タグ。
	Kind Kind
	// Default は未設定時に返されるデフォルト値。宣言型を満たさなければならない。
	Default any
	// WrapFrom はKindWrappedJSON用のデコード関数。
	// JSON文字列からラッパー型のインスタンスを生成する。
	WrapFrom func(string) (JSONWrapper, error)
}

// TypeMismatchError は宣言型に合わない値の代入を表すバリデーションエラー。
type TypeMismatchError struct {
	Field    string
	Expected string
}

// Error はerrorインターフェースを実装する。
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("フィールド %s には %s 型の値が必要です", e.Field, e.Expected)
}

// UnknownAttributeError は登録されていない属性名の指定を表すバリデーションエラー。
type UnknownAttributeError struct {
	TypeName  string
	Attribute string
}

// Error はerrorインターフェースを実装する。
func (e *UnknownAttributeError) Error() string {
	return fmt.Sprintf("エンティティ %s に属性 %s は登録されていません", e.TypeName, e.Attribute)
}

// mismatch は属性名つきのTypeMismatchErrorを生成する。
func (f Field) mismatch(attr string) error {
	return &TypeMismatchError{Field: attr, Expected: f.Kind.String()}
}

// normalize は代入値をバリデーションし、保持用の表現に正規化して返す。
// nil は常に受理される（Map/Setは空表現に正規化される）。
// 宣言型を満たさない値には*TypeMismatchErrorを返す。
func (f Field) normalize(attr string, v any) (any, error) {
	if v == nil {
		switch f.Kind {
		case KindMap:
			return map[string]any{}, nil
		case KindSet:
			return map[string]struct{}{}, nil
		default:
			return nil, nil
		}
	}

	switch f.Kind {
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		}
	case KindFloat:
		if fl, ok := v.(float64); ok {
			return fl, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindTimestamp:
		if t, ok := v.(time.Time); ok {
			return NormalizeTimestamp(t), nil
		}
	case KindMap:
		if m, ok := convertMap(v); ok {
			return m, nil
		}
	case KindSet:
		if s, ok := convertSet(v); ok {
			return s, nil
		}
	case KindUUID:
		switch u := v.(type) {
		case uuid.UUID:
			return u, nil
		case gocql.UUID:
			return uuid.UUID(u), nil
		}
	case KindJSON:
		return normalizeJSON(attr, f, v)
	case KindWrappedJSON:
		switch w := v.(type) {
		case JSONWrapper:
			return w, nil
		case string:
			if f.WrapFrom == nil {
				return nil, fmt.Errorf("フィールド %s にWrapFromが設定されていません", attr)
			}
			decoded, err := f.WrapFrom(w)
			if err != nil {
				return nil, fmt.Errorf("フィールド %s のJSONデコードに失敗しました: %w", attr, err)
			}
			return decoded, nil
		}
	}

	return nil, f.mismatch(attr)
}

// normalizeJSON はKindJSONの値を正規化する。
// 文字列はJSONとしてデコードし、結果がマップまたはリストであることを検証する。
func normalizeJSON(attr string, f Field, v any) (any, error) {
	switch j := v.(type) {
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(j), &decoded); err != nil {
			return nil, fmt.Errorf("フィールド %s のJSONデコードに失敗しました: %w", attr, err)
		}
		switch decoded.(type) {
		case map[string]any, []any:
			return decoded, nil
		}
		return nil, f.mismatch(attr)
	case map[string]any:
		return j, nil
	case []any:
		return j, nil
	}
	return nil, f.mismatch(attr)
}

// get は保持値から属性値を取り出す。
// 未設定および明示的にnilが代入された属性はデフォルト値にフォールバックする。
// 例外はUUIDで、明示的なnil代入はnilのまま読み戻される。
// Map/Setは代入時に空表現へ正規化されるため、保持値がnilになることはない。
func (f Field) get(data map[string]any) any {
	v, present := data[f.Column]
	if present && v != nil {
		return v
	}
	if present && f.Kind == KindUUID {
		return nil
	}
	if f.Default != nil {
		return f.Default
	}
	switch f.Kind {
	case KindMap:
		return map[string]any{}
	case KindSet:
		return map[string]struct{}{}
	default:
		return nil
	}
}

// serialize は保持値をストレージ書き込み用の表現に変換する。
// JSON系以外は恒等変換。
func (f Field) serialize(attr string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Kind {
	case KindJSON:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("フィールド %s のJSONエンコードに失敗しました: %w", attr, err)
		}
		return string(encoded), nil
	case KindWrappedJSON:
		w, ok := v.(JSONWrapper)
		if !ok {
			return nil, f.mismatch(attr)
		}
		return w.ToJSON()
	default:
		return v, nil
	}
}

// NormalizeTimestamp はUTCオフセットの明示がないタイムスタンプにUTCを付与する。
// Goのtime.Timeは常にロケーションを持つため、time.Local（time.Now等の既定値）を
// 「オフセット未指定」とみなし、壁時計の値をそのままUTCとして読み替える。
// それ以外のロケーション（UTC・固定オフセット・名前付きゾーン）は変更しない。
func NormalizeTimestamp(t time.Time) time.Time {
	if t.Location() == time.Local {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	return t
}

// convertMap は任意の文字列キーのマップをmap[string]anyに変換する。
// ストレージエンジンが返す型付きマップ（map[string]string等）を受理するための変換。
func convertMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// convertSet はセット様の値を正準形map[string]struct{}に変換する。
// ストレージエンジンが返すスライス表現（[]string / []any）も受理する。
func convertSet(v any) (map[string]struct{}, bool) {
	switch s := v.(type) {
	case map[string]struct{}:
		return s, true
	case []string:
		set := make(map[string]struct{}, len(s))
		for _, e := range s {
			set[e] = struct{}{}
		}
		return set, true
	case []any:
		set := make(map[string]struct{}, len(s))
		for _, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, false
			}
			set[str] = struct{}{}
		}
		return set, true
	}
	return nil, false
}
