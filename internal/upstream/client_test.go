package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/keurgui/access-gateway-go/internal/errors"
	"github.com/keurgui/access-gateway-go/internal/model"
)

func recordJSON() map[string]any {
	return map[string]any{
		"id":           "rec-1",
		"name":         "Awa Diop",
		"phone":        "+221771234567",
		"created_at":   "2025-03-01T10:00:00Z",
		"expires_at":   "2025-03-01T18:00:00Z",
		"qr_code_data": "aGVsbG8=",
		"user": map[string]any{
			"name":         "Moussa Ndiaye",
			"email":        "moussa@example.com",
			"phone_number": "+221781112233",
		},
	}
}

func TestRecordStore_RenewRecord(t *testing.T) {
	var gotPath, gotQuery, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("duration_minutes")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(recordJSON())
	}))
	defer srv.Close()

	store := NewRecordStore(srv.URL, time.Second)
	rec, err := store.RenewRecord(context.Background(), "tok-1", "rec-1", 60)

	require.NoError(t, err)
	assert.Equal(t, "/forms/rec-1/renew", gotPath)
	assert.Equal(t, "60", gotQuery)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "Awa Diop", rec.GuestName)
	assert.Equal(t, "aGVsbG8=", rec.QRPayload)
}

func TestRecordStore_ListRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/all", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("skip"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]map[string]any{recordJSON()})
	}))
	defer srv.Close()

	store := NewRecordStore(srv.URL, time.Second)
	records, err := store.ListRecords(context.Background(), "tok-1", 10, 50)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), records[0].CreatedAt)
}

func TestRecordStore_DeleteRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := NewRecordStore(srv.URL, time.Second)
	assert.NoError(t, store.DeleteRecord(context.Background(), "tok-1", "rec-1"))
}

func TestRecordStore_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		detail string
		code   apperrors.ErrorCode
	}{
		{"401 is an auth failure", http.StatusUnauthorized, "token expired", apperrors.ErrCodeUnauthorized},
		{"403 is an auth failure", http.StatusForbidden, "", apperrors.ErrCodeUnauthorized},
		{"404 is not found", http.StatusNotFound, "", apperrors.ErrCodeNotFound},
		{"409 is already exists", http.StatusConflict, "User", apperrors.ErrCodeAlreadyExists},
		{"422 is validation", http.StatusUnprocessableEntity, "invalid phone", apperrors.ErrCodeValidation},
		{"500 is upstream", http.StatusInternalServerError, "boom", apperrors.ErrCodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"detail": tt.detail})
			}))
			defer srv.Close()

			store := NewRecordStore(srv.URL, time.Second)
			_, err := store.GetRecord(context.Background(), "tok-1", "rec-1")

			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.GetCode(err))
		})
	}
}

func TestRecordStore_NetworkFailureIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	store := NewRecordStore(srv.URL, time.Second)
	_, err := store.ListRecords(context.Background(), "tok-1", 0, 100)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUpstream, apperrors.GetCode(err))
}

func TestRecordStore_CreateRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/create-form", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var params model.CreateAccessParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "Awa Diop", params.GuestName)
		assert.Equal(t, 60, params.DurationMinutes)

		json.NewEncoder(w).Encode(recordJSON())
	}))
	defer srv.Close()

	store := NewRecordStore(srv.URL, time.Second)
	rec, err := store.CreateRecord(context.Background(), "tok-1", model.CreateAccessParams{
		GuestName:       "Awa Diop",
		GuestPhone:      "+221771234567",
		DurationMinutes: 60,
	})

	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
}

func TestRecordStore_ValidateQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/validate-qr-code", r.URL.Path)
		assert.Equal(t, "payload==", r.URL.Query().Get("qr_data"))
		assert.Empty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"valid":   true,
			"message": "QR code valide",
			"data": map[string]any{
				"name":       "Awa Diop",
				"phone":      "+221771234567",
				"created_at": "2025-03-01T10:00:00Z",
				"expires_at": "2025-03-01T18:00:00Z",
			},
		})
	}))
	defer srv.Close()

	store := NewRecordStore(srv.URL, time.Second)
	result, err := store.ValidateQR(context.Background(), "payload==")

	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Data)
	assert.Equal(t, "Awa Diop", result.Data.GuestName)
}

func TestAuthService_Login(t *testing.T) {
	t.Run("posts form-encoded credentials", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/login", r.URL.Path)
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "awa@example.com", r.PostForm.Get("username"))
			assert.Equal(t, "s3cret", r.PostForm.Get("password"))
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "upstream-token",
				"token_type":   "bearer",
			})
		}))
		defer srv.Close()

		auth := NewAuthService(srv.URL, time.Second)
		token, err := auth.Login(context.Background(), "awa@example.com", "s3cret")

		require.NoError(t, err)
		assert.Equal(t, "upstream-token", token)
	})

	t.Run("maps rejected credentials by status code", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "invalid credentials"})
		}))
		defer srv.Close()

		auth := NewAuthService(srv.URL, time.Second)
		_, err := auth.Login(context.Background(), "awa@example.com", "wrong")

		require.Error(t, err)
		assert.True(t, apperrors.IsAuth(err))
	})
}

func TestAuthService_Register(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/register", r.URL.Path)
		var params RegisterParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "Awa Diop", params.Name)
		json.NewEncoder(w).Encode(map[string]any{
			"id":           1,
			"name":         params.Name,
			"email":        params.Email,
			"phone_number": params.Phone,
		})
	}))
	defer srv.Close()

	auth := NewAuthService(srv.URL, time.Second)
	user, err := auth.Register(context.Background(), RegisterParams{
		Name:     "Awa Diop",
		Email:    "awa@example.com",
		Password: "s3cret",
		Phone:    "+221771234567",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}
