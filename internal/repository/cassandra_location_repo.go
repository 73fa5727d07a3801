package repository

import (
	"context"
	"fmt"

	"github.com/scylladb/gocqlx/v2/qb"

	"github.com/hitoshi/geolog/internal/database"
	"github.com/hitoshi/geolog/internal/entity"
	"github.com/hitoshi/geolog/internal/model"
)

// 2つの非正規化テーブル。locationはユーザー名での点参照向け、
// location_by_timestampは時系列参照向けのキー構造を持つ。
// 読み取りは現状location_by_timestampのみから行うが、locationへの
// 書き込みは将来のアクセスパスのために維持している。
const (
	tableLocation            = "location"
	tableLocationByTimestamp = "location_by_timestamp"
)

// locationColumns は両テーブルで共有するカラム集合。
var locationColumns = []string{
	"username",
	"latitude",
	"longitude",
	"timestamp_created",
	"location_name",
}

// WriteFailureRecorder はテーブル別の書き込み失敗を記録するインターフェース。
// 二重書き込みの不整合ウィンドウを観測可能にするために使う。
type WriteFailureRecorder interface {
	RecordWriteFailure(table string)
}

// CassandraLocationRepo はCassandraを使用した地点リポジトリ。
type CassandraLocationRepo struct {
	client  Executor
	metrics WriteFailureRecorder

	insertByUserStmt  string
	insertByUserNames []string
	insertByTimeStmt  string
	insertByTimeNames []string
	selectAllStmt     string
	selectByUserStmt  string
	selectByUserNames []string
}

// NewCassandraLocationRepo はCassandraLocationRepoを生成する。
// クエリテンプレートは生成時に1回だけ構築して再利用する。
// metricsはnilでもよい（記録なし）。
func NewCassandraLocationRepo(client Executor, metrics WriteFailureRecorder) *CassandraLocationRepo {
	r := &CassandraLocationRepo{
		client:  client,
		metrics: metrics,
	}

	r.insertByUserStmt, r.insertByUserNames = qb.Insert(tableLocation).
		Columns(locationColumns...).ToCql()
	r.insertByTimeStmt, r.insertByTimeNames = qb.Insert(tableLocationByTimestamp).
		Columns(locationColumns...).ToCql()
	r.selectAllStmt, _ = qb.Select(tableLocationByTimestamp).ToCql()
	r.selectByUserStmt, r.selectByUserNames = qb.Select(tableLocationByTimestamp).
		Where(qb.Eq("username")).ToCql()

	return r
}

// Create は地点を保存する。
// シリアライズは1回だけ行い、同一のパラメータ集合で2つのテーブルに
// 順次INSERTする。ルーティングキーはユーザー名から導出する。
// 書き込みはフェイルファースト（再試行なし）で、2本目の失敗時も
// 1本目の書き込みは取り消さない。その場合locationテーブルにのみ
// 存在するレコードが残る（設計上許容された不整合であり、隠蔽しない）。
func (r *CassandraLocationRepo) Create(ctx context.Context, location *model.Location) error {
	params, err := location.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize location: %w", err)
	}

	opts := database.ExecOptions{
		RoutingKey: database.PackRoutingKey(location.Username()),
		Retry:      database.NoRetry,
	}

	if _, err := r.client.Execute(ctx, r.insertByUserStmt, r.insertByUserNames, params, opts); err != nil {
		r.recordWriteFailure(tableLocation)
		return fmt.Errorf("failed to insert into %s: %w", tableLocation, err)
	}

	if _, err := r.client.Execute(ctx, r.insertByTimeStmt, r.insertByTimeNames, params, opts); err != nil {
		r.recordWriteFailure(tableLocationByTimestamp)
		return fmt.Errorf("failed to insert into %s: %w", tableLocationByTimestamp, err)
	}

	return nil
}

// Index は時系列テーブルの全地点を返す。0件の場合は空のスライスを返す。
func (r *CassandraLocationRepo) Index(ctx context.Context) ([]*model.Location, error) {
	rows, err := r.client.Execute(ctx, r.selectAllStmt, nil, nil, database.ExecOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", tableLocationByTimestamp, err)
	}
	return buildLocations(rows)
}

// Get は指定ユーザーの地点一覧を時系列テーブルから返す。
// 0件の場合は空のスライスを返す。
func (r *CassandraLocationRepo) Get(ctx context.Context, username string) ([]*model.Location, error) {
	rows, err := r.client.Execute(ctx, r.selectByUserStmt, r.selectByUserNames,
		map[string]any{"username": username},
		database.ExecOptions{RoutingKey: database.PackRoutingKey(username)},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableLocationByTimestamp, err)
	}
	return buildLocations(rows)
}

// buildLocations は結果行を行アダプタで変換し、Locationエンティティに再構築する。
func buildLocations(rows []map[string]any) ([]*model.Location, error) {
	locations := make([]*model.Location, 0, len(rows))
	for _, row := range rows {
		location, err := model.NewLocation(entity.AdaptRow(row))
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild location from row: %w", err)
		}
		locations = append(locations, location)
	}
	return locations, nil
}

// recordWriteFailure はメトリクスが設定されている場合のみ記録する。
func (r *CassandraLocationRepo) recordWriteFailure(table string) {
	if r.metrics != nil {
		r.metrics.RecordWriteFailure(table)
	}
}

// compile-time interface check
var _ LocationRepository = (*CassandraLocationRepo)(nil)
