package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchfit/tagscan/internal/extract"
)

func TestLookupCode_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/garments/4006381333931", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Garment{ID: "g-1", ProductCode: "4006381333931", Name: "COTTON SWEATER"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	g, err := c.LookupCode(context.Background(), "4006381333931")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, "g-1", g.ID)
	assert.Equal(t, "COTTON SWEATER", g.Name)
}

func TestLookupCode_NotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	g, err := c.LookupCode(context.Background(), "000000")
	assert.NoError(t, err)
	assert.Nil(t, g)
}

func TestLookupCode_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.LookupCode(context.Background(), "x")
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusInternalServerError, nerr.StatusCode)
}

func TestSubmit_SendsSnakeCaseRecord(t *testing.T) {
	price := 49.99
	var received map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/garments", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(Garment{ID: "g-2", ProductCode: "469922"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	g, err := c.Submit(context.Background(), extract.GarmentInfo{
		RawText:      "COTTON SWEATER\nM",
		ProductCode:  "469922",
		Name:         "COTTON SWEATER",
		Size:         "M",
		Color:        "75 Blue",
		Price:        &price,
		Materials:    map[string]int{"Cotton": 80},
		Measurements: map[string]string{"chest": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, "g-2", g.ID)

	for _, key := range []string{"raw_text", "product_code", "name", "size", "color", "price", "materials", "measurements"} {
		assert.Contains(t, received, key)
	}
}

func TestSubmit_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"size is invalid"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	_, err := c.Submit(context.Background(), extract.GarmentInfo{})
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, http.StatusUnprocessableEntity, nerr.StatusCode)
	assert.Contains(t, nerr.Error(), "size is invalid")
}

func TestTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", 100*time.Millisecond)
	_, err := c.LookupCode(context.Background(), "x")
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
	assert.Zero(t, nerr.StatusCode)
}

func TestCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(srv.URL, "", time.Second)
	_, err := c.LookupCode(ctx, "x")
	assert.Error(t, err)
}
