// Package location は地点記録のドメインロジックを提供する。
// ユーザー入力の検証、ジオコーディングによる座標解決、二重書き込み
// リポジトリへの保存を束ねる。
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/geolog/internal/geocode"
	"github.com/hitoshi/geolog/internal/model"
	"github.com/hitoshi/geolog/internal/repository"
	"github.com/hitoshi/geolog/internal/security"
)

// Recorder はサービス層のメトリクス記録インターフェース。
type Recorder interface {
	// RecordLocationCreated は地点登録の成功を記録する。
	RecordLocationCreated()
	// RecordGeocodeResult はジオコーディングの結果種別
	// （hit / miss / error）を記録する。
	RecordGeocodeResult(outcome string)
}

// ジオコーディング結果種別。
const (
	GeocodeHit   = "hit"
	GeocodeMiss  = "miss"
	GeocodeError = "error"
)

// Service は地点記録のサービス層。
// 登録時は入力サニタイズ→ジオコーディング→保存の順で処理し、
// 途中で失敗した場合はその段階のエラー分類で呼び出し元に返す。
type Service struct {
	repo      repository.LocationRepository
	geocoder  geocode.GeocoderService
	sanitizer security.InputSanitizerService
	metrics   Recorder
	logger    *slog.Logger

	// now はテストで時刻を固定するために差し替え可能。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilでもよい（記録なし）。
func NewService(
	repo repository.LocationRepository,
	geocoder geocode.GeocoderService,
	sanitizer security.InputSanitizerService,
	metrics Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		geocoder:  geocoder,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateLocation は地名を座標に解決して地点を保存する。
// 保存される地点名はサニタイズ済みのユーザー入力であり、ジオコーディング
// 結果の正規化名ではない。登録時刻はサーバー側で付与する。
func (s *Service) CreateLocation(ctx context.Context, username, locationName string) (*model.Location, error) {
	username = s.sanitizer.Sanitize(username)
	if err := s.sanitizer.ValidateName(username); err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("ユーザー名が不正です: %v", err))
	}
	locationName = s.sanitizer.Sanitize(locationName)
	if err := s.sanitizer.ValidateName(locationName); err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("地点名が不正です: %v", err))
	}

	result, err := s.geocoder.Lookup(ctx, locationName)
	if err != nil {
		if errors.Is(err, geocode.ErrNotFound) {
			s.recordGeocode(GeocodeMiss)
			return nil, model.NewLocationNotFoundError(locationName)
		}
		s.recordGeocode(GeocodeError)
		s.logger.Error("ジオコーディングに失敗しました",
			slog.String("location_name", locationName),
			slog.String("error", err.Error()),
		)
		return nil, model.NewGeocodeFailedError()
	}
	s.recordGeocode(GeocodeHit)

	loc, err := model.NewLocation(map[string]any{
		"username":          username,
		"location_name":     locationName,
		"latitude":          result.Latitude,
		"longitude":         result.Longitude,
		"timestamp_created": s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("地点エンティティの構築に失敗しました: %w", err)
	}

	if err := s.repo.Create(ctx, loc); err != nil {
		s.logger.Error("地点の保存に失敗しました",
			slog.String("username", username),
			slog.String("location_name", locationName),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageError()
	}

	if s.metrics != nil {
		s.metrics.RecordLocationCreated()
	}
	s.logger.Info("地点を登録しました",
		slog.String("username", username),
		slog.String("location_name", locationName),
		slog.Float64("latitude", result.Latitude),
		slog.Float64("longitude", result.Longitude),
	)
	return loc, nil
}

// ListLocations は全地点を新しい順で返す。0件の場合は空のスライスを返す。
func (s *Service) ListLocations(ctx context.Context) ([]*model.Location, error) {
	locations, err := s.repo.Index(ctx)
	if err != nil {
		s.logger.Error("地点一覧の取得に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStorageError()
	}
	return locations, nil
}

// ListByUser は指定ユーザーの地点一覧を新しい順で返す。
// ユーザー名はサニタイズしてから照合する。0件の場合は空のスライスを返す。
func (s *Service) ListByUser(ctx context.Context, username string) ([]*model.Location, error) {
	username = s.sanitizer.Sanitize(username)
	if err := s.sanitizer.ValidateName(username); err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("ユーザー名が不正です: %v", err))
	}

	locations, err := s.repo.Get(ctx, username)
	if err != nil {
		s.logger.Error("ユーザー別地点一覧の取得に失敗しました",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageError()
	}
	return locations, nil
}

// SuggestPlaces は部分入力に対する地名候補を返す。
// 一致なしの場合は空のスライスを返す。
func (s *Service) SuggestPlaces(ctx context.Context, query string) ([]geocode.Result, error) {
	query = s.sanitizer.Sanitize(query)
	if err := s.sanitizer.ValidateName(query); err != nil {
		return nil, model.NewValidationError(fmt.Sprintf("検索クエリが不正です: %v", err))
	}

	results, err := s.geocoder.Suggest(ctx, query)
	if err != nil {
		s.recordGeocode(GeocodeError)
		s.logger.Error("地名候補の取得に失敗しました",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, model.NewGeocodeFailedError()
	}
	s.recordGeocode(GeocodeHit)
	return results, nil
}

// recordGeocode はメトリクスが設定されている場合のみ記録する。
func (s *Service) recordGeocode(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordGeocodeResult(outcome)
	}
}
