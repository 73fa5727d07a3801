// Package model はドメインモデルを定義する。
package model

import (
	"sync"
	"time"

	"github.com/hitoshi/geolog/internal/entity"
)

// LocationTypeName はLocationエンティティのレジストリ上の型名。
const LocationTypeName = "location"

var registerOnce sync.Once

// RegisterEntities は全エンティティ型のフィールドディスクリプタをレジストリに登録する。
// 起動シーケンス（およびテストのセットアップ）から呼び出す。冪等。
func RegisterEntities() {
	registerOnce.Do(func() {
		entity.Register(LocationTypeName, map[string]entity.Field{
			"username":          {Kind: entity.KindString},
			"location_name":     {Kind: entity.KindString},
			"latitude":          {Kind: entity.KindFloat},
			"longitude":         {Kind: entity.KindFloat},
			"timestamp_created": {Kind: entity.KindTimestamp},
		})
	})
}

// Location はユーザーが登録した名前付き地点を表すエンティティ。
// 全フィールドアクセスはフィールドディスクリプタのバリデーションを経由する。
// レコードは追記専用で、更新・削除は存在しない。
type Location struct {
	record *entity.Record
}

// NewLocation は入力マッピングからLocationを構築する。
// 未登録の属性名が含まれる場合はエラーを返す。
func NewLocation(input map[string]any) (*Location, error) {
	record, err := entity.New(LocationTypeName, input)
	if err != nil {
		return nil, err
	}
	return &Location{record: record}, nil
}

// Username はユーザー名を返す。未設定の場合は空文字列。
func (l *Location) Username() string {
	s, _ := l.record.Get("username").(string)
	return s
}

// SetUsername はユーザー名を設定する。
func (l *Location) SetUsername(v string) error {
	return l.record.Set("username", v)
}

// LocationName は地点名を返す。未設定の場合は空文字列。
func (l *Location) LocationName() string {
	s, _ := l.record.Get("location_name").(string)
	return s
}

// SetLocationName は地点名を設定する。
func (l *Location) SetLocationName(v string) error {
	return l.record.Set("location_name", v)
}

// Latitude は緯度を返す。未設定の場合は0。
func (l *Location) Latitude() float64 {
	f, _ := l.record.Get("latitude").(float64)
	return f
}

// SetLatitude は緯度を設定する。
func (l *Location) SetLatitude(v float64) error {
	return l.record.Set("latitude", v)
}

// Longitude は経度を返す。未設定の場合は0。
func (l *Location) Longitude() float64 {
	f, _ := l.record.Get("longitude").(float64)
	return f
}

// SetLongitude は経度を設定する。
func (l *Location) SetLongitude(v float64) error {
	return l.record.Set("longitude", v)
}

// TimestampCreated は登録時刻を返す。未設定の場合はゼロ値。
// 設定時にUTCオフセットの明示がなかった値はUTCとして読み戻される。
func (l *Location) TimestampCreated() time.Time {
	t, _ := l.record.Get("timestamp_created").(time.Time)
	return t
}

// SetTimestampCreated は登録時刻を設定する。
func (l *Location) SetTimestampCreated(v time.Time) error {
	return l.record.Set("timestamp_created", v)
}

// ToMap は属性名→現在値のプレーンなマッピングを返す。
func (l *Location) ToMap() map[string]any {
	return l.record.ToMap()
}

// Serialize はカラム名→ストレージ向け値のマッピングを返す。
func (l *Location) Serialize() (map[string]any, error) {
	return l.record.Serialize()
}

// Equal は全登録属性の値が等しいかを判定する。
func (l *Location) Equal(other *Location) bool {
	if other == nil {
		return false
	}
	return l.record.Equal(other.record)
}
