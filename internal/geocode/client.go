// Package geocode はGeoNames APIによる地名のジオコーディング機能を提供する。
// 地点登録時の座標解決と、入力補完向けの候補検索を含む。
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

const (
	// defaultBaseURL はGeoNames検索APIのベースURL。
	defaultBaseURL = "http://api.geonames.org"
	// searchPath は地名検索エンドポイントのパス。
	searchPath = "/searchJSON"
	// maxSuggestions は候補検索で返す最大件数。
	maxSuggestions = 10
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
)

// ErrNotFound は地名に一致する結果が1件もなかったことを表す。
// 呼び出し元はこれを検証エラーとして扱う（システム障害ではない）。
var ErrNotFound = errors.New("place name not found")

// Result はジオコーディングの結果1件を表す。
type Result struct {
	// Name はGeoNamesが正規化した地名。
	Name string
	// CountryName は地点の属する国名。補完表示用。
	CountryName string
	// Latitude は緯度（十進度）。
	Latitude float64
	// Longitude は経度（十進度）。
	Longitude float64
}

// GeocoderService はジオコーディング機能のインターフェースを定義する。
type GeocoderService interface {
	// Lookup は地名を座標に解決する。複数候補がある場合は先頭
	// （GeoNamesの関連度順で最上位）を返す。
	// 一致なしの場合はErrNotFoundを返す。
	Lookup(ctx context.Context, name string) (*Result, error)

	// Suggest は部分入力に対する地名候補を関連度順で返す。
	// 一致なしの場合は空のスライスを返す（エラーにしない）。
	Suggest(ctx context.Context, query string) ([]Result, error)
}

// Client はGeoNames APIのクライアント。
// httpClientにはSSRF防止機能付きのクライアントを渡す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	username   string
	baseURL    string // テスト用にベースURLを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// usernameはGeoNamesのAPI利用登録アカウント名。
// baseURLが空の場合はデフォルトの公開エンドポイントを使う。
func NewClient(httpClient *http.Client, logger *slog.Logger, username, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		username:   username,
		baseURL:    baseURL,
	}
}

// geoNamesEntry はsearchJSONレスポンス内の1候補。
// 緯度・経度は文字列で返されるため受信後にパースする。
type geoNamesEntry struct {
	Name        string `json:"name"`
	CountryName string `json:"countryName"`
	Lat         string `json:"lat"`
	Lng         string `json:"lng"`
}

// geoNamesResponse はsearchJSONレスポンスの全体。
type geoNamesResponse struct {
	TotalResultsCount int             `json:"totalResultsCount"`
	GeoNames          []geoNamesEntry `json:"geonames"`
}

// Lookup は地名を座標に解決する。
func (c *Client) Lookup(ctx context.Context, name string) (*Result, error) {
	results, err := c.search(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	return &results[0], nil
}

// Suggest は部分入力に対する地名候補を返す。
func (c *Client) Suggest(ctx context.Context, query string) ([]Result, error) {
	return c.search(ctx, query, maxSuggestions)
}

// search はsearchJSONエンドポイントを呼び出し、結果をパースして返す。
// 一致なしは空のスライスとして返し、エラーにはしない。
func (c *Client) search(ctx context.Context, query string, maxRows int) ([]Result, error) {
	reqURL, err := url.Parse(c.baseURL + searchPath)
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("q", query)
	q.Set("maxRows", strconv.Itoa(maxRows))
	q.Set("username", c.username)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Geolog/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ジオコーディングAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("query", query),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ジオコーディングAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("query", query),
		)
		return nil, fmt.Errorf("ジオコーディングAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var parsed geoNamesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Error("ジオコーディングAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	results := make([]Result, 0, len(parsed.GeoNames))
	for _, entry := range parsed.GeoNames {
		lat, err := strconv.ParseFloat(entry.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("緯度のパースに失敗しました (%q): %w", entry.Lat, err)
		}
		lng, err := strconv.ParseFloat(entry.Lng, 64)
		if err != nil {
			return nil, fmt.Errorf("経度のパースに失敗しました (%q): %w", entry.Lng, err)
		}
		results = append(results, Result{
			Name:        entry.Name,
			CountryName: entry.CountryName,
			Latitude:    lat,
			Longitude:   lng,
		})
	}
	return results, nil
}

// compile-time interface check
var _ GeocoderService = (*Client)(nil)
