// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/geolog/internal/database"
	"github.com/hitoshi/geolog/internal/model"
)

// LocationRepository は地点データの永続化インターフェース。
// 更新・削除は提供しない（レコードは追記専用）。
type LocationRepository interface {
	// Create は地点を2つの非正規化テーブルに書き込む。
	// 2本目の書き込みが失敗した場合もエラーをそのまま返し、1本目は取り消さない。
	Create(ctx context.Context, location *model.Location) error

	// Index は時系列テーブルの全地点を返す。0件の場合は空のスライスを返す。
	Index(ctx context.Context) ([]*model.Location, error)

	// Get は指定ユーザーの地点一覧を返す。0件の場合は空のスライスを返す。
	Get(ctx context.Context, username string) ([]*model.Location, error)
}

// Executor はストレージエンジンクライアントの実行インターフェース。
// *database.Clientが実装する。テストではフェイクに差し替える。
type Executor interface {
	Execute(ctx context.Context, stmt string, names []string, params map[string]any, opts database.ExecOptions) ([]map[string]any, error)
}
