package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propdesk/propdesk/internal/models"
)

func TestListOffers(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/offers", r.URL.Path)
		assert.Equal(t, "50K", r.URL.Query().Get("accountSize"))
		assert.Equal(t, "price", r.URL.Query().Get("sort"))
		assert.Equal(t, "a,b", r.URL.Query().Get("favorites"))
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success":true,"data":{"offers":[{"id":"a","firmName":"Apex","price":150}],"total":1}}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL+"/", "")
	list, err := c.ListOffers(context.Background(), OfferQuery{AccountSize: "50K", Sort: "price", Favorites: []string{"a", "b"}})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Apex", list.Offers[0].FirmName)
	assert.Equal(t, 150.0, list.Offers[0].Price)
}

func TestSubmitReview(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/reviews", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		assert.Equal(t, "9", r.FormValue("companyId"))
		assert.Equal(t, "true", r.FormValue("reportIssue"))
		assert.JSONEq(t, `{"support":4}`, r.FormValue("ratings"))
		assert.Len(t, r.MultipartForm.File["proofFile"], 1)
		assert.Len(t, r.MultipartForm.File["proofFiles"], 2)
		assert.Empty(t, r.MultipartForm.File["payoutProofFile"])

		io.WriteString(w, `{"success":true,"reviewId":"r1","reviewNumber":3,"message":"ok"}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	res, err := c.SubmitReview(context.Background(), ReviewSubmission{
		CompanyID:   "9",
		ReportIssue: true,
		Ratings:     map[string]float64{"support": 4},
		ProofFile:   &File{Name: "proof.png", Content: strings.NewReader("p")},
		ProofFiles: []File{
			{Name: "a.png", Content: strings.NewReader("a")},
			{Name: "b.png", Content: strings.NewReader("b")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", res.ReviewID)
	assert.Equal(t, 3, res.ReviewNumber)
}

func TestSetReviewStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/admin/reviews/r1/status", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))

		var req models.UpdateReviewStatusRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.ReviewApproved, req.Status)

		io.WriteString(w, `{"success":true,"data":{"id":"r1","company_id":"9","status":"approved","review_number":1}}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "sk_test_key")
	rv, err := c.SetReviewStatus(context.Background(), "r1", models.ReviewApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewApproved, rv.Status)
}

func TestListReviews(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"success":true,"data":{"reviews":[{"id":"r1"},{"id":"r2"}],"count":2}}`)
	}))
	defer ts.Close()

	reviews, err := NewClient(ts.URL, "k").ListReviews(context.Background(), ReviewListOptions{Status: models.ReviewPending, Limit: 10})
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "r2", reviews[1].ID)
}

func TestAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"success":false,"error":{"code":"invalid_transition","message":"approved -> rejected"}}`)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "k").SetReviewStatus(context.Background(), "r1", models.ReviewRejected)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "invalid_transition", apiErr.Code)

	assert.Error(t, NewClient(ts.URL, "").Health(context.Background()))
}
