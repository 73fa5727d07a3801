package entity

import (
	"fmt"
	"reflect"
	"time"
)

// Record はフィールドディスクリプタで構成される汎用レコード（エンティティ基底）。
// 内部はカラム名から保持値へのマッピングで、属性アクセスは常にディスクリプタの
// バリデーションを経由する。
type Record struct {
	typeName string
	data     map[string]any
}

// New は入力マッピングからレコードを構築する。
// 登録されていない属性名が含まれる場合は*UnknownAttributeErrorを返し、
// 部分的に構築されたレコードは呼び出し元に渡らない。
// 各値はディスクリプタのバリデーションを経由して設定される。
func New(typeName string, input map[string]any) (*Record, error) {
	fields, ok := fieldsOf(typeName)
	if !ok {
		return nil, fmt.Errorf("entity: 型 %s は登録されていません", typeName)
	}

	r := &Record{
		typeName: typeName,
		data:     make(map[string]any, len(fields)),
	}

	for attr, value := range input {
		if _, registered := fields[attr]; !registered {
			return nil, &UnknownAttributeError{TypeName: typeName, Attribute: attr}
		}
		if err := r.Set(attr, value); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// TypeName はレコードの宣言型名を返す。
func (r *Record) TypeName() string {
	return r.typeName
}

// Get は属性値を返す。真に未設定の属性はデフォルト値（Map/Setは空表現）になる。
// 未登録の属性にはnilを返す。
func (r *Record) Get(attr string) any {
	fields, ok := fieldsOf(r.typeName)
	if !ok {
		return nil
	}
	f, ok := fields[attr]
	if !ok {
		return nil
	}
	return f.get(r.data)
}

// Set は属性値をバリデーションして設定する。
// 宣言型に合わない値には*TypeMismatchError、未登録の属性には
// *UnknownAttributeErrorを返す。
func (r *Record) Set(attr string, v any) error {
	fields, ok := fieldsOf(r.typeName)
	if !ok {
		return fmt.Errorf("entity: 型 %s は登録されていません", r.typeName)
	}
	f, ok := fields[attr]
	if !ok {
		return &UnknownAttributeError{TypeName: r.typeName, Attribute: attr}
	}
	normalized, err := f.normalize(attr, v)
	if err != nil {
		return err
	}
	r.data[f.Column] = normalized
	return nil
}

// ToMap は全登録属性の属性名→現在値のマッピングを返す。
// 未設定の属性はデフォルト値で埋められる。キー順の決定性のため
// ソート済み属性列で構築する。
func (r *Record) ToMap() map[string]any {
	m := make(map[string]any)
	for _, attr := range Attributes(r.typeName) {
		m[attr] = r.Get(attr)
	}
	return m
}

// Serialize は全登録属性のカラム名→ストレージ向けシリアライズ値のマッピングを返す。
// JSON系フィールド以外は恒等変換。
func (r *Record) Serialize() (map[string]any, error) {
	fields, ok := fieldsOf(r.typeName)
	if !ok {
		return nil, fmt.Errorf("entity: 型 %s は登録されていません", r.typeName)
	}
	serialized := make(map[string]any, len(fields))
	for attr, f := range fields {
		value, err := f.serialize(attr, f.get(r.data))
		if err != nil {
			return nil, err
		}
		serialized[f.Column] = value
	}
	return serialized, nil
}

// Equal は同一宣言型の2つのレコードの全登録属性が等しいかを判定する。
// 宣言型が異なる場合は常にfalse。
func (r *Record) Equal(other *Record) bool {
	if other == nil || r.typeName != other.typeName {
		return false
	}
	for _, attr := range Attributes(r.typeName) {
		if !valueEqual(r.Get(attr), other.Get(attr)) {
			return false
		}
	}
	return true
}

// valueEqual は属性値の等価性を判定する。
// タイムスタンプは瞬間で比較し、コレクションは深い等価性で比較する。
func valueEqual(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
