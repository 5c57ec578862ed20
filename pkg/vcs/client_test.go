package vcs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/swarm/pkg/config"
)

func testVCSClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&config.VCSConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}, "test-token")
}

func TestCreatePullRequest(t *testing.T) {
	client := testVCSClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/payments/pulls", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "feature/add-refunds-1a2b3c", body["head"])
		assert.Equal(t, "main", body["base"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(PullRequest{Number: 42, HTMLURL: "https://github.com/acme/payments/pull/42", State: "open"})
	}))

	pr, err := client.CreatePullRequest(context.Background(), CreatePRRequest{
		Repo:       Repo{Owner: "acme", Name: "payments"},
		Title:      "Add refunds flow",
		Body:       "body",
		HeadBranch: "feature/add-refunds-1a2b3c",
		BaseBranch: "main",
	})

	require.NoError(t, err)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "https://github.com/acme/payments/pull/42", pr.HTMLURL)
}

func TestCreatePullRequestAdoptsExisting(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/payments/pulls", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"message": "A pull request already exists for acme:feature/add-refunds-1a2b3c.",
		})
	})
	mux.HandleFunc("GET /repos/acme/payments/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme:feature/add-refunds-1a2b3c", r.URL.Query().Get("head"))
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		json.NewEncoder(w).Encode([]PullRequest{
			{Number: 17, HTMLURL: "https://github.com/acme/payments/pull/17", State: "open"},
		})
	})
	client := testVCSClient(t, mux)

	pr, err := client.CreatePullRequest(context.Background(), CreatePRRequest{
		Repo:       Repo{Owner: "acme", Name: "payments"},
		HeadBranch: "feature/add-refunds-1a2b3c",
		BaseBranch: "main",
	})

	require.NoError(t, err)
	assert.Equal(t, 17, pr.Number, "should adopt the open PR for the same head")
}

func TestCreatePullRequestOtherErrorsPropagate(t *testing.T) {
	client := testVCSClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "Resource not accessible by integration"})
	}))

	_, err := client.CreatePullRequest(context.Background(), CreatePRRequest{
		Repo:       Repo{Owner: "acme", Name: "payments"},
		HeadBranch: "feature/x",
		BaseBranch: "main",
	})

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestSquashMerge(t *testing.T) {
	var gotBody map[string]string
	client := testVCSClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/repos/acme/payments/pulls/42/merge", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(MergeResult{SHA: "abc123", Merged: true, Message: "Pull Request successfully merged"})
	}))

	result, err := client.SquashMerge(context.Background(), Repo{Owner: "acme", Name: "payments"}, 42, "Add refunds flow")

	require.NoError(t, err)
	assert.True(t, result.Merged)
	assert.False(t, result.AlreadyMerged)
	assert.Equal(t, "squash", gotBody["merge_method"])
}

func TestSquashMergeAlreadyMergedIsSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/acme/payments/pulls/42/merge", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"message": "Pull Request is not mergeable"})
	})
	mux.HandleFunc("GET /repos/acme/payments/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PullRequest{Number: 42, State: "closed", Merged: true})
	})
	client := testVCSClient(t, mux)

	result, err := client.SquashMerge(context.Background(), Repo{Owner: "acme", Name: "payments"}, 42, "title")

	require.NoError(t, err)
	assert.True(t, result.Merged)
	assert.True(t, result.AlreadyMerged)
}

func TestSquashMergeUnmergeableFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /repos/acme/payments/pulls/42/merge", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]string{"message": "Pull Request is not mergeable"})
	})
	mux.HandleFunc("GET /repos/acme/payments/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PullRequest{Number: 42, State: "open", Merged: false})
	})
	client := testVCSClient(t, mux)

	_, err := client.SquashMerge(context.Background(), Repo{Owner: "acme", Name: "payments"}, 42, "title")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusMethodNotAllowed, apiErr.StatusCode)
}

func TestAddLabels(t *testing.T) {
	var got map[string][]string
	client := testVCSClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/acme/payments/issues/42/labels", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("[]"))
	}))

	err := client.AddLabels(context.Background(), Repo{Owner: "acme", Name: "payments"}, 42, Labels(3))

	require.NoError(t, err)
	assert.Equal(t, []string{"swarm-generated", "scope:medium"}, got["labels"])
}

func TestDeleteBranch(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		wantErr bool
	}{
		{"deleted", http.StatusNoContent, "", false},
		{"already gone 404", http.StatusNotFound, "Not Found", false},
		{"already gone 422", http.StatusUnprocessableEntity, "Reference does not exist", false},
		{"forbidden", http.StatusForbidden, "protected branch", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := testVCSClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(tt.status)
				if tt.message != "" {
					json.NewEncoder(w).Encode(map[string]string{"message": tt.message})
				}
			}))

			err := client.DeleteBranch(context.Background(), Repo{Owner: "acme", Name: "payments"}, "feature/x")
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAPIErrorMessageFallsBackToStatus(t *testing.T) {
	client := testVCSClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	}))

	_, err := client.GetPullRequest(context.Background(), Repo{Owner: "acme", Name: "payments"}, 1)

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.NotEmpty(t, apiErr.Message)
}
