package participant

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/queue-api/internal/model"
	"github.com/jwalitptl/queue-api/internal/repository/memory"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newRouter() *gin.Engine {
	router := gin.New()
	NewHandler(memory.NewUserRepository()).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetParticipant(t *testing.T) {
	router := newRouter()

	w := do(t, router, http.MethodPost, "/api/v1/participants", model.CreateParticipantRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		UserType: model.UserTypePatient,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data model.User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.Data.ID)

	w = do(t, router, http.MethodGet, "/api/v1/participants/"+resp.Data.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Ana", resp.Data.Name)
}

func TestCreateParticipantDuplicateEmail(t *testing.T) {
	router := newRouter()
	req := model.CreateParticipantRequest{
		Name:     "Ana",
		Email:    "ana@example.com",
		UserType: model.UserTypePatient,
	}

	w := do(t, router, http.MethodPost, "/api/v1/participants", req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/participants", req)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateParticipantValidation(t *testing.T) {
	router := newRouter()

	w := do(t, router, http.MethodPost, "/api/v1/participants", gin.H{
		"name":      "Ana",
		"email":     "not-an-email",
		"user_type": "patient",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/api/v1/participants", gin.H{
		"name":      "Ana",
		"email":     "ana@example.com",
		"user_type": "nurse",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetParticipantErrors(t *testing.T) {
	router := newRouter()

	w := do(t, router, http.MethodGet, "/api/v1/participants/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/participants/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
