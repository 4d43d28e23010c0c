// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azuredevops

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	fakeazcore "github.com/Azure/azure-sdk-for-go/sdk/azcore/fake"
	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/devboard/internal/poller"
	"github.com/mia-platform/devboard/internal/source"
)

func testSource(t *testing.T, handler http.Handler, mutate func(*config)) *Source {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := validConfig()
	cfg.OrganizationURL = server.URL + "/myorg"
	cfg.MaxRetries = 2
	if mutate != nil {
		mutate(&cfg)
	}

	src, err := newSource(t.Context(), cfg, &fakeazcore.TokenCredential{})
	require.NoError(t, err)
	src.client.newBackOff = func() backoff.BackOff {
		return backoff.NewConstantBackOff(time.Millisecond)
	}
	return src
}

func TestPullRequests(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/myorg/myproject/_apis/git/pullrequests", r.URL.Path)
		assert.Equal(t, "active", r.URL.Query().Get("searchCriteria.status"))
		assert.Equal(t, "100", r.URL.Query().Get("$top"))
		assert.Equal(t, acceptHeader, r.Header.Get("Accept"))
		assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte(":pat")), r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(pullRequestsPayload))
	})

	src := testSource(t, handler, nil)
	pullRequests, err := src.PullRequests(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []source.PullRequest{
		{
			ID:           42,
			Title:        "Add login page",
			Status:       "active",
			MergeStatus:  "succeeded",
			IsDraft:      false,
			RepositoryID: "3411ebc1-d5aa-464f-9615-0b527bc66719",
			Repository:   "frontend",
			SourceRef:    "refs/heads/feature/login",
			TargetRef:    "refs/heads/main",
			CreatedBy:    "Jane Doe",
			CreationDate: time.Date(2025, time.March, 3, 10, 15, 30, 0, time.UTC),
			Reviewers: []source.Reviewer{
				{ID: "d6245f20-2af8-44f4-9451-8107cb2767db", DisplayName: "John Smith", Vote: 10, IsRequired: true},
			},
		},
		{
			ID:        43,
			Title:     "Draft refactor",
			Status:    "active",
			IsDraft:   true,
			Reviewers: []source.Reviewer{},
		},
	}, pullRequests)
}

func TestBuildsAndReleases(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /myorg/myproject/_apis/build/builds", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("$top"))
		assert.Equal(t, "startTimeDescending", r.URL.Query().Get("queryOrder"))
		w.Write([]byte(buildsPayload))
	})
	mux.HandleFunc("GET /myorg/myproject/_apis/release/releases", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "environments", r.URL.Query().Get("$expand"))
		w.Write([]byte(releasesPayload))
	})

	src := testSource(t, mux, nil)

	builds, err := src.Builds(t.Context())
	require.NoError(t, err)
	require.Len(t, builds, 2)
	assert.Equal(t, source.Build{
		ID:           1201,
		BuildNumber:  "20250303.4",
		DefinitionID: 12,
		Definition:   "web-frontend-prod",
		Status:       "completed",
		Result:       "succeeded",
		SourceBranch: "refs/heads/main",
		RequestedFor: "Jane Doe",
		QueueTime:    time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC),
		StartTime:    time.Date(2025, time.March, 3, 10, 1, 0, 0, time.UTC),
		FinishTime:   time.Date(2025, time.March, 3, 10, 6, 30, 0, time.UTC),
	}, builds[0])
	assert.Equal(t, "inProgress", builds[1].Status)
	assert.True(t, builds[1].FinishTime.IsZero())

	releases, err := src.Releases(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []source.Release{
		{
			ID:         77,
			Name:       "Release-77",
			Status:     "active",
			Definition: "api-backend",
			CreatedOn:  time.Date(2025, time.March, 2, 8, 30, 0, 0, time.UTC),
			Environments: []source.ReleaseEnvironment{
				{ID: 301, Name: "dev", Status: "succeeded", Definition: "api-backend-dev"},
				{ID: 302, Name: "prod", Status: "notStarted", Definition: "api-backend"},
			},
		},
	}, releases)
}

func TestWorkItemsAndReviewers(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /myorg/_apis/work/accountmyworkrecentactivity", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(workItemsPayload))
	})
	mux.HandleFunc("GET /myorg/myproject/_apis/git/repositories/repo-1/pullrequests/42/reviewers", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"count":2,"value":[{"id":"a","displayName":"Ann","vote":10},{"id":"b","displayName":"Bob","vote":-5}]}`))
	})

	src := testSource(t, mux, nil)

	workItems, err := src.WorkItems(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []source.WorkItem{
		{
			ID:           501,
			Title:        "Fix flaky test",
			WorkItemType: "Task",
			State:        "Active",
			AssignedTo:   "Jane Doe",
			TeamProject:  "myproject",
			ChangedDate:  time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:           502,
			Title:        "Write docs",
			WorkItemType: "Task",
			State:        "New",
			TeamProject:  "myproject",
		},
	}, workItems)

	reviewers, err := src.Reviewers(t.Context(), "repo-1", 42)
	require.NoError(t, err)
	assert.Equal(t, []source.Reviewer{
		{ID: "a", DisplayName: "Ann", Vote: 10},
		{ID: "b", DisplayName: "Bob", Vote: -5},
	}, reviewers)
}

func TestReviewersAreCoalesced(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		<-release
		w.Write([]byte(`{"count":1,"value":[{"id":"a","displayName":"Ann","vote":10}]}`))
	})

	src := testSource(t, handler, nil)

	const callers = 5
	var wg sync.WaitGroup
	results := make([][]source.Reviewer, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reviewers, err := src.Reviewers(t.Context(), "repo-1", 42)
			assert.NoError(t, err)
			results[i] = reviewers
		}()
	}

	assert.Eventually(t, func() bool { return requests.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())
	for _, reviewers := range results {
		assert.Equal(t, []source.Reviewer{{ID: "a", DisplayName: "Ann", Vote: 10}}, reviewers)
	}
}

func TestRequestErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		responses        []int
		body             string
		expectedRequests int32
		expectedErr      error
		expectedStatus   int
		expectedMessage  string
	}{
		"not found is not retried": {
			responses:        []int{http.StatusNotFound},
			body:             `{"$id":"1","message":"TF200016: The project does not exist","typeKey":"ProjectDoesNotExistException"}`,
			expectedRequests: 1,
			expectedErr:      poller.ErrTransport,
			expectedStatus:   http.StatusNotFound,
			expectedMessage:  "TF200016: The project does not exist",
		},
		"server error recovers on retry": {
			responses:        []int{http.StatusInternalServerError, http.StatusOK},
			body:             `{"count":0,"value":[]}`,
			expectedRequests: 2,
		},
		"throttling exhausts retries": {
			responses:        []int{http.StatusTooManyRequests, http.StatusTooManyRequests, http.StatusTooManyRequests},
			body:             "slow down",
			expectedRequests: 3,
			expectedErr:      poller.ErrTransport,
			expectedStatus:   http.StatusTooManyRequests,
			expectedMessage:  "slow down",
		},
		"sign in page means unauthorized": {
			responses:        []int{http.StatusNonAuthoritativeInfo},
			body:             "<html>sign in</html>",
			expectedRequests: 1,
			expectedErr:      poller.ErrTransport,
			expectedStatus:   http.StatusUnauthorized,
			expectedMessage:  "authentication rejected by Azure DevOps",
		},
		"malformed body": {
			responses:        []int{http.StatusOK},
			body:             `{"count":1,"value":[{"id":`,
			expectedRequests: 1,
			expectedErr:      poller.ErrDecode,
		},
		"missing envelope": {
			responses:        []int{http.StatusOK},
			body:             `{"id":1}`,
			expectedRequests: 1,
			expectedErr:      poller.ErrDecode,
		},
	}

	for testName, test := range tests {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			var requests atomic.Int32
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				current := requests.Add(1)
				w.WriteHeader(test.responses[current-1])
				w.Write([]byte(test.body))
			})

			src := testSource(t, handler, nil)
			_, err := src.Builds(t.Context())
			assert.Equal(t, test.expectedRequests, requests.Load())
			if test.expectedErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, test.expectedErr)
			require.ErrorIs(t, err, ErrDevOpsSource)

			var transportErr *poller.TransportError
			if errors.As(err, &transportErr) {
				assert.Equal(t, test.expectedStatus, transportErr.StatusCode)
				assert.Equal(t, test.expectedMessage, transportErr.Message)
			}
		})
	}
}

func TestAuthModes(t *testing.T) {
	t.Parallel()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "client", r.Form.Get("client_id"))
		assert.Equal(t, devOpsScope, r.Form.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"service-token","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenServer.Close)

	tests := map[string]struct {
		mutate   func(*config)
		expected func(t *testing.T, authorization string)
	}{
		"personal access token": {
			expected: func(t *testing.T, authorization string) {
				t.Helper()
				assert.Equal(t, "Basic OnBhdA==", authorization)
			},
		},
		"bearer": {
			mutate: func(c *config) {
				c.AuthMode = AuthModeBearer
				c.BearerToken = "static-token"
			},
			expected: func(t *testing.T, authorization string) {
				t.Helper()
				assert.Equal(t, "Bearer static-token", authorization)
			},
		},
		"entra": {
			mutate: func(c *config) {
				c.AuthMode = AuthModeEntra
			},
			expected: func(t *testing.T, authorization string) {
				t.Helper()
				assert.Regexp(t, `^Bearer \S+$`, authorization)
			},
		},
		"client credentials": {
			mutate: func(c *config) {
				c.AuthMode = AuthModeClientCredentials
				c.ClientID = "client"
				c.ClientSecret = "secret"
				c.TokenURL = tokenServer.URL
			},
			expected: func(t *testing.T, authorization string) {
				t.Helper()
				assert.Equal(t, "Bearer service-token", authorization)
			},
		},
	}

	for testName, test := range tests {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			var authorization atomic.Value
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				authorization.Store(r.Header.Get("Authorization"))
				w.Write([]byte(`{"count":0,"value":[]}`))
			})

			src := testSource(t, handler, test.mutate)
			_, err := src.WorkItems(t.Context())
			require.NoError(t, err)
			test.expected(t, authorization.Load().(string))
		})
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	src := testSource(t, http.NotFoundHandler(), nil)
	assert.NoError(t, src.Close(t.Context(), time.Second))
}

const (
	pullRequestsPayload = `{
	"value": [
		{
			"repository": {
				"id": "3411ebc1-d5aa-464f-9615-0b527bc66719",
				"name": "frontend",
				"url": "https://dev.azure.com/myorg/_apis/git/repositories/3411ebc1-d5aa-464f-9615-0b527bc66719"
			},
			"pullRequestId": 42,
			"status": "active",
			"createdBy": {
				"displayName": "Jane Doe",
				"id": "a9c0e4d1-4f5b-4f6e-8c53-4c5c8a7a6c21"
			},
			"creationDate": "2025-03-03T10:15:30Z",
			"title": "Add login page",
			"sourceRefName": "refs/heads/feature/login",
			"targetRefName": "refs/heads/main",
			"mergeStatus": "succeeded",
			"isDraft": false,
			"reviewers": [
				{
					"vote": 10,
					"isRequired": true,
					"displayName": "John Smith",
					"id": "d6245f20-2af8-44f4-9451-8107cb2767db"
				}
			]
		},
		{
			"pullRequestId": 43,
			"status": "active",
			"title": "Draft refactor",
			"isDraft": true
		}
	],
	"count": 2
}`

	buildsPayload = `{
	"count": 2,
	"value": [
		{
			"id": 1201,
			"buildNumber": "20250303.4",
			"status": "completed",
			"result": "succeeded",
			"queueTime": "2025-03-03T10:00:00Z",
			"startTime": "2025-03-03T10:01:00Z",
			"finishTime": "2025-03-03T10:06:30Z",
			"sourceBranch": "refs/heads/main",
			"definition": {"id": 12, "name": "web-frontend-prod"},
			"requestedFor": {"displayName": "Jane Doe"}
		},
		{
			"id": 1202,
			"buildNumber": "20250303.5",
			"status": "inProgress",
			"startTime": "2025-03-03T11:00:00Z",
			"definition": {"id": 13, "name": "api-backend-dev"}
		}
	]
}`

	releasesPayload = `{
	"count": 1,
	"value": [
		{
			"id": 77,
			"name": "Release-77",
			"status": "active",
			"createdOn": "2025-03-02T08:30:00Z",
			"releaseDefinition": {"id": 4, "name": "api-backend"},
			"environments": [
				{"id": 301, "name": "dev", "status": "succeeded", "releaseDefinition": {"id": 4, "name": "api-backend-dev"}},
				{"id": 302, "name": "prod", "status": "notStarted"}
			]
		}
	]
}`

	workItemsPayload = `{
	"count": 2,
	"value": [
		{
			"id": 501,
			"title": "Fix flaky test",
			"workItemType": "Task",
			"state": "Active",
			"assignedTo": {"displayName": "Jane Doe", "id": "a9c0e4d1"},
			"teamProject": "myproject",
			"changedDate": "2025-03-04T09:00:00Z",
			"activityType": "visited"
		},
		{
			"id": 502,
			"title": "Write docs",
			"workItemType": "Task",
			"state": "New",
			"teamProject": "myproject"
		}
	]
}`
)
