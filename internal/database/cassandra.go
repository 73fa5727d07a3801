// Package database はCassandraクラスタへの接続とクエリ実行を提供する。
//
// 永続化レイアウトは2つの非正規化テーブルからなる:
//
//	CREATE TABLE location (
//	    username text, latitude double, longitude double,
//	    timestamp_created timestamp, location_name text,
//	    PRIMARY KEY (username, location_name)
//	);
//	CREATE TABLE location_by_timestamp (
//	    username text, latitude double, longitude double,
//	    timestamp_created timestamp, location_name text,
//	    PRIMARY KEY (username, timestamp_created)
//	) WITH CLUSTERING ORDER BY (timestamp_created DESC);
//
// スキーマ管理ツールは提供しない（スコープ外）。
package database

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/gocql/gocql"
	"github.com/scylladb/gocqlx/v2"
)

// Config はCassandra接続の設定を保持する。
type Config struct {
	// Hosts はクラスタ接続の起点となるノードのリスト。
	Hosts []string
	// Keyspace は接続先のキースペース。
	Keyspace string
	// Timeout はクエリ単位のタイムアウト。0の場合はドライバのデフォルトを使う。
	Timeout time.Duration
}

// Client はCassandraセッションの共有クライアント。
// セッションは内部的にスレッドセーフであり、アプリケーション側の
// ロックは不要。プリペアドステートメントのキャッシュはセッションが
// 所有し、Closeで破棄される。
type Client struct {
	session gocqlx.Session
}

// Connect はCassandraクラスタに接続してClientを生成する。
func Connect(cfg Config) (*Client, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}

	session, err := gocqlx.WrapSession(cluster.CreateSession())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
	}

	slog.Info("cassandra connection established",
		slog.Any("hosts", cfg.Hosts),
		slog.String("keyspace", cfg.Keyspace),
	)

	return &Client{session: session}, nil
}

// Close はセッションを閉じる。プリペアドステートメントのキャッシュも
// セッションと共に破棄される。
func (c *Client) Close() {
	c.session.Close()
	slog.Info("cassandra connection closed")
}

// NoRetry は書き込みに使うフェイルファーストのリトライポリシー。
// INSERTの盲目的な再試行は二重書き込みプロトコルの失敗を覆い隠すため、
// 失敗は再試行せずそのまま呼び出し元に伝える。
var NoRetry gocql.RetryPolicy = &gocql.SimpleRetryPolicy{NumRetries: 0}

// ExecOptions はExecuteの実行オプション。
type ExecOptions struct {
	// RoutingKey はデータ配置を決めるルーティングキー。省略可。
	RoutingKey []byte
	// Retry はリトライポリシー。nilの場合はクラスタのデフォルトに従う。
	Retry gocql.RetryPolicy
}

// Execute はパラメータ化されたクエリテンプレートを実行し、結果行を
// カラム名→値のマッピングの列として返す。
// ストレージエンジンのエラーは文脈を付与して伝播し、ここでは回復も
// 変換も行わない。
func (c *Client) Execute(ctx context.Context, stmt string, names []string, params map[string]any, opts ExecOptions) ([]map[string]any, error) {
	q := c.session.ContextQuery(ctx, stmt, names).BindMap(params)
	if opts.Retry != nil {
		q.Query.RetryPolicy(opts.Retry)
	}
	if len(opts.RoutingKey) > 0 {
		q.Query.RoutingKey(opts.RoutingKey)
	}

	iter := q.Query.Iter()
	var rows []map[string]any
	for {
		row := map[string]any{}
		if !iter.MapScan(row) {
			break
		}
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// Ping はストレージの死活確認を行う。ヘルスチェック用。
func (c *Client) Ping(ctx context.Context) error {
	var version string
	err := c.session.ContextQuery(ctx, "SELECT release_version FROM system.local", nil).Scan(&version)
	if err != nil {
		return fmt.Errorf("cassandra ping failed: %w", err)
	}
	return nil
}

// PackRoutingKey はルーティングキー値をドライバ向けのバイト列に変換する。
func PackRoutingKey(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return x
	case string:
		return []byte(x)
	case int64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(x))
		return b
	case int:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(int64(x)))
		return b
	default:
		return []byte(fmt.Sprintf("%v", x))
	}
}
