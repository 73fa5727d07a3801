// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/geolog/internal/geocode"
	"github.com/hitoshi/geolog/internal/middleware"
	"github.com/hitoshi/geolog/internal/model"
)

// LocationServiceInterface は地点ハンドラーが必要とするサービスインターフェース。
type LocationServiceInterface interface {
	// CreateLocation は地名を座標に解決して地点を保存する。
	CreateLocation(ctx context.Context, username, locationName string) (*model.Location, error)
	// ListLocations は全地点を新しい順で返す。
	ListLocations(ctx context.Context) ([]*model.Location, error)
	// ListByUser は指定ユーザーの地点一覧を新しい順で返す。
	ListByUser(ctx context.Context, username string) ([]*model.Location, error)
	// SuggestPlaces は部分入力に対する地名候補を返す。
	SuggestPlaces(ctx context.Context, query string) ([]geocode.Result, error)
}

// CreateLatencyRecorder は地点登録処理のレイテンシを記録する
// メトリクスインターフェース。
type CreateLatencyRecorder interface {
	RecordCreateLatency(duration time.Duration)
}

// LocationHandler は地点記録のHTTPハンドラー。
type LocationHandler struct {
	service LocationServiceInterface
	metrics CreateLatencyRecorder
}

// NewLocationHandler はLocationHandlerを生成する。
// metricsはnilでもよい（記録なし）。
func NewLocationHandler(service LocationServiceInterface, metrics CreateLatencyRecorder) *LocationHandler {
	return &LocationHandler{
		service: service,
		metrics: metrics,
	}
}

// createLocationRequest は地点登録リクエストのボディ。
type createLocationRequest struct {
	Username     string `json:"username"`
	LocationName string `json:"location_name"`
}

// locationResponse は地点情報のAPIレスポンス。
type locationResponse struct {
	Username         string    `json:"username"`
	LocationName     string    `json:"location_name"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	TimestampCreated time.Time `json:"timestamp_created"`
}

// locationListResponse は地点一覧のAPIレスポンス。
type locationListResponse struct {
	Locations []locationResponse `json:"locations"`
}

// suggestionResponse は地名候補1件のAPIレスポンス。
type suggestionResponse struct {
	Name        string  `json:"name"`
	CountryName string  `json:"country_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// suggestionListResponse は地名候補一覧のAPIレスポンス。
type suggestionListResponse struct {
	Suggestions []suggestionResponse `json:"suggestions"`
}

// CreateLocation は地点登録を処理する。
// POST /api/locations
func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req createLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	location, err := h.service.CreateLocation(r.Context(), req.Username, req.LocationName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCreateLatency(time.Since(start))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toLocationResponse(location))
}

// ListLocations は全地点の一覧を返す。
// GET /api/locations
func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.ListLocations(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toLocationListResponse(locations))
}

// ListByUser は指定ユーザーの地点一覧を返す。
// 該当地点がない場合も200で空の一覧を返す（404にしない）。
// GET /api/locations/{username}
func (h *LocationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	locations, err := h.service.ListByUser(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toLocationListResponse(locations))
}

// Suggest は地名候補の検索を処理する。
// GET /api/locations/suggest?q=...
func (h *LocationHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("検索クエリqが指定されていません"))
		return
	}

	results, err := h.service.SuggestPlaces(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := suggestionListResponse{Suggestions: make([]suggestionResponse, 0, len(results))}
	for _, result := range results {
		resp.Suggestions = append(resp.Suggestions, suggestionResponse{
			Name:        result.Name,
			CountryName: result.CountryName,
			Latitude:    result.Latitude,
			Longitude:   result.Longitude,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// --- ヘルパー関数 ---

// toLocationResponse はmodel.LocationからAPIレスポンスに変換する。
func toLocationResponse(location *model.Location) locationResponse {
	return locationResponse{
		Username:         location.Username(),
		LocationName:     location.LocationName(),
		Latitude:         location.Latitude(),
		Longitude:        location.Longitude(),
		TimestampCreated: location.TimestampCreated(),
	}
}

// toLocationListResponse は地点スライスを一覧レスポンスに変換する。
// 0件の場合も空の配列として返す。
func toLocationListResponse(locations []*model.Location) locationListResponse {
	resp := locationListResponse{Locations: make([]locationResponse, 0, len(locations))}
	for _, location := range locations {
		resp.Locations = append(resp.Locations, toLocationResponse(location))
	}
	return resp
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// LOCATION_NOT_FOUNDはリソース不在ではなく地名が解決できなかったことを
// 表すため422とする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeLocationNotFound:
		return http.StatusUnprocessableEntity
	case model.ErrCodeGeocodeFailed:
		return http.StatusBadGateway
	case model.ErrCodeStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
